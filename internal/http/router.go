package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/cors"

	"github.com/example/classroom-service/internal/auth"
)

const defaultMaxBodyBytes = 64 << 10

// RouterConfig wires the handlers and cross-cutting middleware.
type RouterConfig struct {
	Classrooms *ClassroomHandler
	Resolver   auth.Resolver
	Logger     *slog.Logger

	// CORSOrigins lists allowed origins; "*" allows any origin without credentials.
	CORSOrigins []string
	// JoinRateLimit caps join attempts per client IP per minute. Zero disables it.
	JoinRateLimit int
	MaxBodyBytes  int64

	// Health reports backend readiness for GET /healthz. Nil means always healthy.
	Health func(ctx context.Context) error
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	responder := newResponder(logger)

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxBody))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusNotFound, codeNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusMethodNotAllowed, codeBadRequest, nil)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Health(ctx); err != nil {
				responder.loggerFor(req.Context()).ErrorContext(req.Context(), "health check failed", "error", err)
				responder.writeError(req.Context(), w, http.StatusServiceUnavailable, codeUnavailable, errors.New("storage unavailable"))
				return
			}
		}
		responder.writeSuccess(req.Context(), w, http.StatusOK, "ok", nil)
	})

	if cfg.Classrooms != nil && cfg.Resolver != nil {
		h := cfg.Classrooms
		joinLimit := joinRateLimiter(cfg.JoinRateLimit, responder)

		r.Route("/api", func(r chi.Router) {
			r.Use(RequireAuth(cfg.Resolver, logger))

			r.Post("/classroom", h.Create)
			r.Get("/classrooms", h.List)
			r.With(joinLimit).Post("/join-classroom", h.Join)

			r.Route("/classroom/{classroomID}", func(r chi.Router) {
				r.Get("/", h.Get)
				r.Put("/", h.Update)
				r.Delete("/", h.Delete)
				r.Get("/members", h.Members)
				r.Delete("/member/self", h.Leave)
				r.Delete("/member/{memberID}", h.RemoveMember)
			})
		})
	}

	return corsHandler(cfg.CORSOrigins).Handler(r)
}

func joinRateLimiter(limit int, responder responder) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			responder.writeError(r.Context(), w, http.StatusTooManyRequests, codeRateLimited, errors.New("too many join attempts, try again later"))
		}),
	)
}

func corsHandler(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           600,
	})
}
