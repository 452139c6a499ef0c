package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/example/classroom-service/internal/application"
)

// KeySetResolver verifies asymmetric tokens against a JSON Web Key Set. Keys
// must carry kid and alg, and tokens must name their key with kid.
type KeySetResolver struct {
	set    jwk.Set
	issuer string
	now    func() time.Time
}

// NewKeySetResolver verifies tokens against set. An empty issuer skips the iss check.
func NewKeySetResolver(set jwk.Set, issuer string) (*KeySetResolver, error) {
	if set == nil {
		return nil, errors.New("auth: key set is required")
	}
	return &KeySetResolver{set: set, issuer: issuer, now: time.Now}, nil
}

// NewRemoteKeySetResolver fetches the key set at url once, failing fast when
// it is unreachable, and keeps it refreshed in the background until ctx ends.
func NewRemoteKeySetResolver(ctx context.Context, url, issuer string, refresh time.Duration) (*KeySetResolver, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("auth: key set url is required")
	}
	if refresh <= 0 {
		refresh = 15 * time.Minute
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(url, jwk.WithMinRefreshInterval(refresh)); err != nil {
		return nil, fmt.Errorf("auth: register key set: %w", err)
	}
	if _, err := cache.Refresh(ctx, url); err != nil {
		return nil, fmt.Errorf("auth: fetch key set: %w", err)
	}
	return NewKeySetResolver(jwk.NewCachedSet(cache, url), issuer)
}

// Resolve verifies token and returns its principal.
func (r *KeySetResolver) Resolve(ctx context.Context, token string) (application.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return application.Principal{}, ErrMissingToken
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(r.set),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(defaultLeeway),
		jwt.WithClock(jwt.ClockFunc(r.now)),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	parsed, err := jwt.ParseString(token, opts...)
	if err != nil {
		return application.Principal{}, invalid(keySetFailureReason(err), nil)
	}

	role, _ := parsed.Get(RoleClaim)
	return principalFromClaims(parsed.Subject(), role)
}

func keySetFailureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired()):
		return "token has expired"
	case errors.Is(err, jwt.ErrTokenNotYetValid()):
		return "token is not valid yet"
	case errors.Is(err, jwt.ErrInvalidIssuer()):
		return "issuer is not accepted"
	}
	return "token verification failed"
}
