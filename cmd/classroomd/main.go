package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/classroom-service/internal/application"
	"github.com/example/classroom-service/internal/auth"
	"github.com/example/classroom-service/internal/config"
	httptransport "github.com/example/classroom-service/internal/http"
	"github.com/example/classroom-service/internal/logging"
	"github.com/example/classroom-service/internal/persistence"
	"github.com/example/classroom-service/internal/persistence/memory"
	"github.com/example/classroom-service/internal/persistence/postgres"
	"github.com/example/classroom-service/internal/persistence/sqlite"
)

const jwksRefreshInterval = 15 * time.Minute

// backend is a persistence store the process owns for its lifetime.
type backend interface {
	persistence.ClassroomStore
	Ping(ctx context.Context) error
	io.Closer
}

func main() {
	bootstrap := logging.New(slog.LevelInfo, os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("classroom service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	resolver, err := newResolver(ctx, cfg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newHandler(cfg, store, resolver, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("classroom API listening", "addr", server.Addr, "store", cfg.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.Store {
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, logger.With("component", "postgres"))
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil
	default:
		store, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	}
}

func newResolver(ctx context.Context, cfg config.Config) (auth.Resolver, error) {
	if cfg.JWKSURL != "" {
		resolver, err := auth.NewRemoteKeySetResolver(ctx, cfg.JWKSURL, cfg.TokenIssuer, jwksRefreshInterval)
		if err != nil {
			return nil, fmt.Errorf("load jwks: %w", err)
		}
		return resolver, nil
	}
	var opts []auth.HMACOption
	if cfg.TokenIssuer != "" {
		opts = append(opts, auth.WithIssuer(cfg.TokenIssuer))
	}
	resolver, err := auth.NewHMACResolver(cfg.TokenSecret, opts...)
	if err != nil {
		return nil, fmt.Errorf("configure token resolver: %w", err)
	}
	return resolver, nil
}

func newHandler(cfg config.Config, store backend, resolver auth.Resolver, logger *slog.Logger) http.Handler {
	service := application.NewClassroomServiceWithLogger(
		application.NewPersistenceStore(store),
		uuid.NewString,
		time.Now,
		logger,
	)
	return httptransport.NewRouter(httptransport.RouterConfig{
		Classrooms:    httptransport.NewClassroomHandler(service, logger),
		Resolver:      resolver,
		Logger:        logger,
		CORSOrigins:   cfg.CORSOrigins,
		JoinRateLimit: cfg.JoinRateLimit,
		Health:        store.Ping,
	})
}
