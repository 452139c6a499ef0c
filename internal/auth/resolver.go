// Package auth turns bearer tokens into verified principals. Resolvers only
// verify; issuing tokens is left to the identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/classroom-service/internal/application"
)

var (
	// ErrMissingToken is returned when no credential accompanies a request.
	ErrMissingToken = fmt.Errorf("%w: missing token", application.ErrUnauthenticated)
	// ErrInvalidToken is returned when a credential fails verification or
	// carries an unusable subject or role.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", application.ErrUnauthenticated)
)

// RoleClaim is the private claim that carries the principal's role.
const RoleClaim = "role"

// defaultLeeway absorbs clock drift between the issuer and this service.
const defaultLeeway = 30 * time.Second

// reservedSubject is the path segment of the leave route.
const reservedSubject = "self"

// Resolver verifies a credential and returns the principal it names. Every
// failure satisfies errors.Is(err, application.ErrUnauthenticated).
type Resolver interface {
	Resolve(ctx context.Context, token string) (application.Principal, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, token string) (application.Principal, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, token string) (application.Principal, error) {
	return f(ctx, token)
}

// invalid wraps a verification failure. The reason never includes token text.
func invalid(reason string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrInvalidToken, reason)
	}
	return fmt.Errorf("%w: %s: %v", ErrInvalidToken, reason, cause)
}

// principalFromClaims applies the rules shared by every resolver: a non-empty
// subject and a role from the closed set. The subject "self" is reserved by the
// leave route and never names a user.
func principalFromClaims(subject string, role any) (application.Principal, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return application.Principal{}, invalid("subject claim is empty", nil)
	}
	if subject == reservedSubject {
		return application.Principal{}, invalid("subject claim is reserved", nil)
	}
	roleText, _ := role.(string)
	parsed, ok := application.ParseRole(roleText)
	if !ok {
		return application.Principal{}, invalid("role claim is missing or unknown", nil)
	}
	return application.Principal{ID: subject, Role: parsed}, nil
}

// IsUnauthenticated reports whether err is a resolver failure.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, application.ErrUnauthenticated)
}
