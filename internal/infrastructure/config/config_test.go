package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"APP_NAME", "APP_VERSION", "APP_ENV", "APP_PORT",
		"HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "HTTP_WRITE_TIMEOUT_BULK",
		"HTTP_IDLE_TIMEOUT", "HTTP_SHUTDOWN_TIMEOUT",
		"AUTH_ENABLED", "JWT_ISSUER_URI", "JWT_JWK_SET_URI", "AUTH_CLOCK_SKEW", "AUTH_BYPASS_PATHS",
		"LOG_LEVEL",
		"SUMEX_REQUEST_BASE_URL", "SUMEX_RESPONSE_BASE_URL",
		"SUMEX_CALL_TIMEOUT", "SUMEX_GENERATE_TIMEOUT", "SUMEX_XML_RETRY_DELAY",
		"SUMEX_CLOSE_STRATEGY", "SUMEX_MAX_CONCURRENT_SESSIONS",
		"BUILD_WORKER_POOL_SIZE", "BUILD_MAX_BATCH_SIZE",
	}
	for _, key := range envVars {
		os.Unsetenv(key)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	// Avoid requiring JWT config for defaults
	os.Setenv("AUTH_ENABLED", "false")
	defer os.Unsetenv("AUTH_ENABLED")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.Name != "ms_invoicing" {
		t.Errorf("expected default app name 'ms_invoicing', got %q", cfg.App.Name)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Sumex.CallTimeout != 60*time.Second {
		t.Errorf("expected default call timeout 60s, got %s", cfg.Sumex.CallTimeout)
	}
	if cfg.Sumex.GenerateTimeout != 30*time.Second {
		t.Errorf("expected default generate timeout 30s, got %s", cfg.Sumex.GenerateTimeout)
	}
	if cfg.Sumex.CloseStrategy != CloseEager {
		t.Errorf("expected default close strategy eager, got %q", cfg.Sumex.CloseStrategy)
	}
	if cfg.Build.WorkerPoolSize != 4 {
		t.Errorf("expected default worker pool size 4, got %d", cfg.Build.WorkerPoolSize)
	}
}

func TestLoad_WithCustomValues(t *testing.T) {
	clearEnv(t)

	os.Setenv("AUTH_ENABLED", "false")
	os.Setenv("SUMEX_REQUEST_BASE_URL", "http://sumex:8081/generalInvoiceRequest")
	os.Setenv("SUMEX_RESPONSE_BASE_URL", "http://sumex:8081/generalInvoiceResponse")
	os.Setenv("SUMEX_CALL_TIMEOUT", "90s")
	os.Setenv("SUMEX_CLOSE_STRATEGY", "idle")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Sumex.RequestBaseURL != "http://sumex:8081/generalInvoiceRequest" {
		t.Errorf("unexpected request base URL %q", cfg.Sumex.RequestBaseURL)
	}
	if cfg.Sumex.ResponseBaseURL != "http://sumex:8081/generalInvoiceResponse" {
		t.Errorf("unexpected response base URL %q", cfg.Sumex.ResponseBaseURL)
	}
	if cfg.Sumex.CallTimeout != 90*time.Second {
		t.Errorf("expected call timeout 90s, got %s", cfg.Sumex.CallTimeout)
	}
	if cfg.Sumex.CloseStrategy != CloseIdle {
		t.Errorf("expected close strategy idle, got %q", cfg.Sumex.CloseStrategy)
	}
}

func TestLoad_InvalidCloseStrategy(t *testing.T) {
	clearEnv(t)

	os.Setenv("AUTH_ENABLED", "false")
	os.Setenv("SUMEX_CLOSE_STRATEGY", "sometimes")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid close strategy, got nil")
	}
}

func TestLoad_AuthRequiresJWKS(t *testing.T) {
	clearEnv(t)

	os.Setenv("AUTH_ENABLED", "true")
	os.Setenv("JWT_ISSUER_URI", "https://issuer.example.com")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error when JWT_JWK_SET_URI missing, got nil")
	}
}
