package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/classroom-service/internal/application"
)

// Claims is the token body HMACResolver accepts.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// HMACResolver verifies HS256 tokens signed with a shared secret.
type HMACResolver struct {
	secret []byte
	parser *jwt.Parser
}

// HMACOption customises an HMACResolver.
type HMACOption func(*hmacOptions)

type hmacOptions struct {
	issuer string
	now    func() time.Time
	leeway time.Duration
}

// WithIssuer requires the iss claim to equal issuer.
func WithIssuer(issuer string) HMACOption {
	return func(o *hmacOptions) { o.issuer = issuer }
}

// WithClock replaces the clock used for exp and nbf checks.
func WithClock(now func() time.Time) HMACOption {
	return func(o *hmacOptions) { o.now = now }
}

// NewHMACResolver returns a resolver for tokens signed with secret. Tokens
// must carry exp.
func NewHMACResolver(secret string, opts ...HMACOption) (*HMACResolver, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}

	options := hmacOptions{leeway: defaultLeeway}
	for _, opt := range opts {
		opt(&options)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(options.leeway),
	}
	if options.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(options.issuer))
	}
	if options.now != nil {
		parserOpts = append(parserOpts, jwt.WithTimeFunc(options.now))
	}

	return &HMACResolver{secret: []byte(secret), parser: jwt.NewParser(parserOpts...)}, nil
}

// Resolve verifies token and returns its principal.
func (r *HMACResolver) Resolve(ctx context.Context, token string) (application.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return application.Principal{}, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := r.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return r.secret, nil
	})
	if err != nil {
		return application.Principal{}, invalid(hmacFailureReason(err), nil)
	}
	if !parsed.Valid {
		return application.Principal{}, invalid("token is not valid", nil)
	}

	return principalFromClaims(claims.Subject, claims.Role)
}

// hmacFailureReason names the failed check without echoing the token.
func hmacFailureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "token is malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "signature is invalid"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "required claim is missing"
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return "token is not valid yet"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer is not accepted"
	}
	return "token verification failed"
}
