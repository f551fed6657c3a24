package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	auditpg "praxisdesk/ms_invoicing/internal/adapters/audit/postgres"
	healthhandler "praxisdesk/ms_invoicing/internal/adapters/http/health"
	invoicehandler "praxisdesk/ms_invoicing/internal/adapters/http/invoice"
	"praxisdesk/ms_invoicing/internal/adapters/invoice/sumex"
	apphealth "praxisdesk/ms_invoicing/internal/application/health"
	appinvoice "praxisdesk/ms_invoicing/internal/application/invoice"
	"praxisdesk/ms_invoicing/internal/core/audit"
	"praxisdesk/ms_invoicing/internal/infrastructure/config"
	"praxisdesk/ms_invoicing/internal/infrastructure/database"
	httpinfra "praxisdesk/ms_invoicing/internal/infrastructure/http"
	"praxisdesk/ms_invoicing/internal/infrastructure/http/middleware"
	"praxisdesk/ms_invoicing/internal/infrastructure/http/server"
	"praxisdesk/ms_invoicing/internal/infrastructure/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "service stopped: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.App.Name, cfg.Log.Level, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Audit trail is optional: without a database the service still builds
	// invoices, it just loses the persisted engine call log.
	var auditRepo audit.Repository
	if cfg.Database.Host != "" && cfg.Database.Database != "" {
		pool, err := database.NewPool(ctx, database.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			Database:        cfg.Database.Database,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			log.Warn("database unavailable, engine audit trail disabled", "error", err, "host", cfg.Database.Host)
		} else {
			defer pool.Close()
			if err := database.RunMigrations(ctx, pool, log); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			auditRepo = auditpg.NewRepository(pool, log)
			log.Info("database connection established", "database", cfg.Database.Database)
		}
	} else {
		log.Info("database not configured, engine audit trail disabled")
	}

	if cfg.Sumex.RequestBaseURL == "" {
		return fmt.Errorf("load config: SUMEX_REQUEST_BASE_URL is required")
	}
	// A single engine host commonly serves both interfaces.
	responseBaseURL := cfg.Sumex.ResponseBaseURL
	if responseBaseURL == "" {
		responseBaseURL = cfg.Sumex.RequestBaseURL
	}

	auditEnabled := cfg.Audit.Enabled && auditRepo != nil
	clientCfg := func() *httpinfra.TracedClientConfig {
		return &httpinfra.TracedClientConfig{
			Timeout:         cfg.Sumex.CallTimeout,
			AuditEnabled:    auditEnabled,
			LogRequestBody:  cfg.Audit.LogRequestBody,
			LogResponseBody: cfg.Audit.LogResponseBody,
			MaxBodySize:     cfg.Audit.MaxBodySize,
			MaxConnsPerHost: cfg.Sumex.MaxConcurrentSessions * 2,
		}
	}

	requestClient := httpinfra.NewTracedClient(clientCfg(), log, auditRepo, "request")
	responseClient := httpinfra.NewTracedClient(clientCfg(), log, auditRepo, "response")

	requestGateway := sumex.NewGateway(sumex.GatewayConfig{
		BaseURL:         cfg.Sumex.RequestBaseURL,
		CallTimeout:     cfg.Sumex.CallTimeout,
		GenerateTimeout: cfg.Sumex.GenerateTimeout,
		XMLRetryDelay:   cfg.Sumex.XMLRetryDelay,
	}, requestClient, sumex.NewCircuitBreaker(10, 0.6, 30*time.Second), log)

	responseGateway := sumex.NewGateway(sumex.GatewayConfig{
		BaseURL:         responseBaseURL,
		CallTimeout:     cfg.Sumex.CallTimeout,
		GenerateTimeout: cfg.Sumex.GenerateTimeout,
		XMLRetryDelay:   cfg.Sumex.XMLRetryDelay,
	}, responseClient, sumex.NewCircuitBreaker(10, 0.6, 30*time.Second), log)

	limiter := sumex.NewSessionLimiter(cfg.Sumex.MaxConcurrentSessions)
	sessions := sumex.NewSessionManager(requestGateway, limiter, cfg.Sumex.CloseStrategy, log)
	builder := sumex.NewSessionBuilder(requestGateway, sessions, log)
	interpreter := sumex.NewInterpreter(responseGateway, cfg.Sumex.CloseStrategy, log)

	invoiceService := appinvoice.NewService(builder, interpreter, cfg.Build.WorkerPoolSize, cfg.Build.MaxBatchSize, log)
	healthService := apphealth.NewService(apphealth.Metadata{
		Service:     cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	})

	authenticator, err := middleware.NewJWTAuthenticator(cfg.Auth, log)
	if err != nil {
		return fmt.Errorf("init authenticator: %w", err)
	}
	defer authenticator.Close()

	srv, err := server.New(server.Options{
		HTTP:    cfg.HTTP,
		Logger:  log,
		Auth:    authenticator,
		Health:  healthhandler.NewHandler(healthService),
		Invoice: invoicehandler.NewHandler(invoiceService, log),
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
