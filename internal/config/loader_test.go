package config

import (
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		const secret = "super-secret"
		cfg, err := LoadFrom(envMap(map[string]string{"CLASSROOM_TOKEN_SECRET": secret}))
		if err != nil {
			t.Fatalf("LoadFrom returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.Store != StoreSQLite || cfg.SQLitePath != "classroom.db" {
			t.Fatalf("unexpected default store: %q %q", cfg.Store, cfg.SQLitePath)
		}
		if cfg.TokenSecret != secret {
			t.Fatalf("expected token secret to be %q, got %q", secret, cfg.TokenSecret)
		}
		if !reflect.DeepEqual(cfg.CORSOrigins, []string{"*"}) {
			t.Fatalf("unexpected default origins: %v", cfg.CORSOrigins)
		}
		if cfg.JoinRateLimit != 30 || cfg.ShutdownTimeout != 10*time.Second || cfg.LogLevel != slog.LevelInfo {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
		if cfg.Addr() != ":8080" {
			t.Fatalf("unexpected addr %q", cfg.Addr())
		}
	})

	t.Run("reads the process environment", func(t *testing.T) {
		t.Setenv("CLASSROOM_TOKEN_SECRET", "from-env")
		t.Setenv("CLASSROOM_HTTP_PORT", "9191")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9191 || cfg.TokenSecret != "from-env" {
			t.Fatalf("unexpected config: %+v", cfg)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		_, err := LoadFrom(envMap(map[string]string{"CLASSROOM_STORE": "postgres"}))
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "required environment variables are not set: CLASSROOM_POSTGRES_DSN, CLASSROOM_TOKEN_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("jwks url replaces the shared secret", func(t *testing.T) {
		cfg, err := LoadFrom(envMap(map[string]string{
			"CLASSROOM_JWKS_URL":     "https://id.example.com/.well-known/jwks.json",
			"CLASSROOM_TOKEN_ISSUER": "https://id.example.com/",
		}))
		if err != nil {
			t.Fatalf("LoadFrom returned error: %v", err)
		}
		if cfg.TokenSecret != "" || cfg.TokenIssuer != "https://id.example.com/" {
			t.Fatalf("unexpected token config: %+v", cfg)
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		cfg, err := LoadFrom(envMap(map[string]string{
			"CLASSROOM_TOKEN_SECRET":     "secret-value",
			"CLASSROOM_HTTP_PORT":        "9090",
			"CLASSROOM_STORE":            "Memory",
			"CLASSROOM_CORS_ORIGINS":     "https://a.example.com, https://b.example.com,",
			"CLASSROOM_JOIN_RATE_LIMIT":  "0",
			"CLASSROOM_SHUTDOWN_TIMEOUT": "45s",
			"CLASSROOM_LOG_LEVEL":        "debug",
		}))
		if err != nil {
			t.Fatalf("LoadFrom returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 || cfg.Store != StoreMemory {
			t.Fatalf("unexpected port/store: %d %q", cfg.HTTPPort, cfg.Store)
		}
		if want := []string{"https://a.example.com", "https://b.example.com"}; !reflect.DeepEqual(cfg.CORSOrigins, want) {
			t.Fatalf("expected origins %v, got %v", want, cfg.CORSOrigins)
		}
		if cfg.JoinRateLimit != 0 {
			t.Fatalf("expected rate limit disabled, got %d", cfg.JoinRateLimit)
		}
		if cfg.ShutdownTimeout != 45*time.Second {
			t.Fatalf("expected shutdown timeout 45s, got %s", cfg.ShutdownTimeout)
		}
		if cfg.LogLevel != slog.LevelDebug {
			t.Fatalf("expected debug level, got %v", cfg.LogLevel)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		_, err := LoadFrom(envMap(map[string]string{
			"CLASSROOM_TOKEN_SECRET":     "secret-value",
			"CLASSROOM_HTTP_PORT":        "http",
			"CLASSROOM_STORE":            "redis",
			"CLASSROOM_JOIN_RATE_LIMIT":  "-1",
			"CLASSROOM_SHUTDOWN_TIMEOUT": "soon",
			"CLASSROOM_LOG_LEVEL":        "loud",
		}))
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "environment variables have invalid values: CLASSROOM_HTTP_PORT, CLASSROOM_STORE, CLASSROOM_JOIN_RATE_LIMIT, CLASSROOM_SHUTDOWN_TIMEOUT, CLASSROOM_LOG_LEVEL"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}
