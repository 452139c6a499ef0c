package http

import (
	"context"
	"log/slog"

	"github.com/example/classroom-service/internal/application"
	"github.com/example/classroom-service/internal/logging"
)

type principalKey struct{}

// ContextWithPrincipal stores the principal RequireAuth resolved for the request.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext returns the resolved principal. Handlers pass the zero
// principal through when it is absent, which the service rejects as
// unauthenticated.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(application.Principal)
	return principal, ok
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// handlerLogger prefers the request scoped logger set by RequestLogger.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}
	return logger.With(append([]any{"handler", handlerName, "operation", operation}, attrs...)...)
}
