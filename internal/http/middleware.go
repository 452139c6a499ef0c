package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/classroom-service/internal/auth"
	"github.com/example/classroom-service/internal/logging"
)

// tokenCookieName is the cookie browser clients send the bearer token in.
const tokenCookieName = "token"

// RequireAuth resolves the request's bearer token into a principal and stores
// it in the request context. Requests without a valid token get 401.
func RequireAuth(resolver auth.Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := extractTokenFromRequest(r)
			if token == "" {
				responder.writeError(ctx, w, http.StatusUnauthorized, codeUnauthenticated, errMissingToken)
				return
			}

			principal, err := resolver.Resolve(ctx, token)
			if err != nil {
				responder.loggerFor(ctx).WarnContext(ctx, "token rejected", "error", err)
				responder.writeError(ctx, w, http.StatusUnauthorized, codeUnauthenticated, errInvalidToken)
				return
			}

			ctx = ContextWithPrincipal(ctx, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a per-request logger to the context and logs the
// start and outcome of each request. It tags entries with the id set by
// middleware.RequestID, so it must run after that middleware.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

func extractTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(tokenCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
