package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/classroom-service/internal/logging"
)

// Store backends accepted by CLASSROOM_STORE.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config captures environment driven configuration values for the classroom service.
type Config struct {
	HTTPPort        int
	Store           string
	SQLitePath      string
	PostgresDSN     string
	TokenSecret     string
	JWKSURL         string
	TokenIssuer     string
	CORSOrigins     []string
	JoinRateLimit   int
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
}

// Load parses configuration values from the current process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom parses configuration through getenv.
//
// The loader applies defaults for optional fields while validating required
// values, and reports every missing or invalid variable in one error.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		Store:           StoreSQLite,
		SQLitePath:      "classroom.db",
		CORSOrigins:     []string{"*"},
		JoinRateLimit:   30,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        slog.LevelInfo,
	}

	lookup := func(key string) string {
		return strings.TrimSpace(getenv(key))
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	if portValue := lookup("CLASSROOM_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "CLASSROOM_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if store := strings.ToLower(lookup("CLASSROOM_STORE")); store != "" {
		switch store {
		case StoreSQLite, StorePostgres, StoreMemory:
			cfg.Store = store
		default:
			invalid = append(invalid, "CLASSROOM_STORE")
		}
	}

	if path := lookup("CLASSROOM_SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}

	cfg.PostgresDSN = lookup("CLASSROOM_POSTGRES_DSN")
	if cfg.Store == StorePostgres && cfg.PostgresDSN == "" {
		missing = append(missing, "CLASSROOM_POSTGRES_DSN")
	}

	cfg.TokenSecret = lookup("CLASSROOM_TOKEN_SECRET")
	cfg.JWKSURL = lookup("CLASSROOM_JWKS_URL")
	cfg.TokenIssuer = lookup("CLASSROOM_TOKEN_ISSUER")
	if cfg.TokenSecret == "" && cfg.JWKSURL == "" {
		missing = append(missing, "CLASSROOM_TOKEN_SECRET")
	}
	if cfg.JWKSURL != "" && !strings.HasPrefix(cfg.JWKSURL, "https://") && !strings.HasPrefix(cfg.JWKSURL, "http://") {
		invalid = append(invalid, "CLASSROOM_JWKS_URL")
	}

	if originsValue := lookup("CLASSROOM_CORS_ORIGINS"); originsValue != "" {
		origins := make([]string, 0, 4)
		for _, origin := range strings.Split(originsValue, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) == 0 {
			invalid = append(invalid, "CLASSROOM_CORS_ORIGINS")
		} else {
			cfg.CORSOrigins = origins
		}
	}

	if limitValue := lookup("CLASSROOM_JOIN_RATE_LIMIT"); limitValue != "" {
		limit, err := strconv.Atoi(limitValue)
		if err != nil || limit < 0 {
			invalid = append(invalid, "CLASSROOM_JOIN_RATE_LIMIT")
		} else {
			cfg.JoinRateLimit = limit
		}
	}

	if timeoutValue := lookup("CLASSROOM_SHUTDOWN_TIMEOUT"); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "CLASSROOM_SHUTDOWN_TIMEOUT")
		} else {
			cfg.ShutdownTimeout = timeout
		}
	}

	if levelValue := lookup("CLASSROOM_LOG_LEVEL"); levelValue != "" {
		level, err := logging.ParseLevel(levelValue)
		if err != nil {
			invalid = append(invalid, "CLASSROOM_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTPPort)
}
