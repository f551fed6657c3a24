package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CloseStrategy selects how engine sessions are released after a build.
type CloseStrategy string

const (
	// CloseEager issues a best-effort destruct call once the session is done.
	CloseEager CloseStrategy = "eager"
	// CloseIdle leaves cleanup to the engine's inactivity garbage collection.
	CloseIdle CloseStrategy = "idle"
)

// AppConfig encapsulates all runtime configuration knobs.
type AppConfig struct {
	App      AppSettings
	HTTP     HTTPSettings
	Auth     AuthSettings
	Log      LogSettings
	Database DatabaseSettings
	Audit    AuditSettings
	Sumex    SumexSettings
	Build    BuildSettings
}

type AppSettings struct {
	Name        string
	Version     string
	Environment string
}

type HTTPSettings struct {
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	WriteTimeoutBulk time.Duration // extended timeout for batch builds
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
}

type AuthSettings struct {
	Enabled     bool
	IssuerURI   string
	JWKSetURI   string
	ClockSkew   time.Duration
	BypassPaths []string
}

type LogSettings struct {
	Level string
}

type DatabaseSettings struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuditSettings struct {
	Enabled         bool
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodySize     int
}

// SumexSettings configures the two remote invoicing engine endpoints.
type SumexSettings struct {
	// RequestBaseURL fronts the generalInvoiceRequest builder engine.
	RequestBaseURL string
	// ResponseBaseURL fronts the generalInvoiceResponse parser engine.
	ResponseBaseURL string
	// CallTimeout bounds every engine method call.
	CallTimeout time.Duration
	// GenerateTimeout bounds the document generation (GetXML) call.
	GenerateTimeout time.Duration
	// XMLRetryDelay is the pause before the single empty-body retry of GetXML.
	XMLRetryDelay time.Duration
	// CloseStrategy selects eager destruct vs engine-side idle GC.
	CloseStrategy CloseStrategy
	// MaxConcurrentSessions caps simultaneously open engine sessions.
	MaxConcurrentSessions int
}

// BuildSettings contains configuration for concurrent batch builds.
type BuildSettings struct {
	WorkerPoolSize int
	MaxBatchSize   int
}

// Load resolves the application configuration from environment variables.
// It first attempts to load variables from a .env file if it exists;
// variables set in the environment take precedence over .env values.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		App: AppSettings{
			Name:        getEnv("APP_NAME", "ms_invoicing"),
			Version:     getEnv("APP_VERSION", "0.1.0"),
			Environment: getEnv("APP_ENV", "local"),
		},
		HTTP: HTTPSettings{
			Port:             getEnvAsInt("APP_PORT", 8080),
			ReadTimeout:      getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:     getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			WriteTimeoutBulk: getEnvAsDuration("HTTP_WRITE_TIMEOUT_BULK", 10*time.Minute),
			IdleTimeout:      getEnvAsDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:  getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Auth: AuthSettings{
			Enabled:     getEnvAsBool("AUTH_ENABLED", true),
			IssuerURI:   strings.TrimSpace(os.Getenv("JWT_ISSUER_URI")),
			JWKSetURI:   strings.TrimSpace(os.Getenv("JWT_JWK_SET_URI")),
			ClockSkew:   getEnvAsDuration("AUTH_CLOCK_SKEW", 2*time.Minute),
			BypassPaths: getEnvAsCSV("AUTH_BYPASS_PATHS", []string{"/health"}),
		},
		Log: LogSettings{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseSettings{
			Host:            getEnv("DB_HOST", ""),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "ms_invoicing"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Audit: AuditSettings{
			Enabled:         getEnvAsBool("AUDIT_ENABLED", true),
			LogRequestBody:  getEnvAsBool("AUDIT_LOG_REQUEST_BODY", true),
			LogResponseBody: getEnvAsBool("AUDIT_LOG_RESPONSE_BODY", true),
			MaxBodySize:     getEnvAsInt("AUDIT_MAX_BODY_SIZE", 102400),
		},
		Sumex: SumexSettings{
			RequestBaseURL:        strings.TrimSpace(os.Getenv("SUMEX_REQUEST_BASE_URL")),
			ResponseBaseURL:       strings.TrimSpace(os.Getenv("SUMEX_RESPONSE_BASE_URL")),
			CallTimeout:           getEnvAsDuration("SUMEX_CALL_TIMEOUT", 60*time.Second),
			GenerateTimeout:       getEnvAsDuration("SUMEX_GENERATE_TIMEOUT", 30*time.Second),
			XMLRetryDelay:         getEnvAsDuration("SUMEX_XML_RETRY_DELAY", 2*time.Second),
			CloseStrategy:         CloseStrategy(getEnv("SUMEX_CLOSE_STRATEGY", string(CloseEager))),
			MaxConcurrentSessions: getEnvAsInt("SUMEX_MAX_CONCURRENT_SESSIONS", 8),
		},
		Build: BuildSettings{
			WorkerPoolSize: getEnvAsInt("BUILD_WORKER_POOL_SIZE", 4),
			MaxBatchSize:   getEnvAsInt("BUILD_MAX_BATCH_SIZE", 200),
		},
	}

	switch cfg.Sumex.CloseStrategy {
	case CloseEager, CloseIdle:
	default:
		return cfg, errors.New("invalid config: SUMEX_CLOSE_STRATEGY must be 'eager' or 'idle'")
	}

	if cfg.Sumex.MaxConcurrentSessions <= 0 {
		return cfg, errors.New("invalid config: SUMEX_MAX_CONCURRENT_SESSIONS must be greater than 0")
	}
	if cfg.Build.WorkerPoolSize <= 0 {
		return cfg, errors.New("invalid config: BUILD_WORKER_POOL_SIZE must be greater than 0")
	}
	if cfg.Build.MaxBatchSize <= 0 {
		return cfg, errors.New("invalid config: BUILD_MAX_BATCH_SIZE must be greater than 0")
	}

	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURI == "" {
			return cfg, errors.New("invalid config: JWT_ISSUER_URI is required when AUTH_ENABLED=true")
		}
		if cfg.Auth.JWKSetURI == "" {
			return cfg, errors.New("invalid config: JWT_JWK_SET_URI is required when AUTH_ENABLED=true")
		}
	}

	return cfg, nil
}

// Address returns the HTTP listen address in host:port form.
func (h HTTPSettings) Address() string {
	return fmt.Sprintf(":%d", h.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsCSV(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
