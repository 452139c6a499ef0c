package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/example/classroom-service/internal/application"
)

const testSecret = "classroom-test-secret"

var testNow = time.Date(2024, time.June, 3, 8, 0, 0, 0, time.UTC)

func signHMAC(t *testing.T, secret string, method gojwt.SigningMethod, claims Claims) string {
	t.Helper()
	signed, err := gojwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func hmacClaims(subject, role string) Claims {
	return Claims{
		Role: role,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "classroom-idp",
			IssuedAt:  gojwt.NewNumericDate(testNow.Add(-time.Minute)),
			ExpiresAt: gojwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	}
}

func TestHMACResolver(t *testing.T) {
	resolver, err := NewHMACResolver(testSecret, WithIssuer("classroom-idp"), WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("NewHMACResolver failed: %v", err)
	}
	ctx := context.Background()

	t.Run("accepts canonical and legacy roles", func(t *testing.T) {
		tests := []struct {
			role string
			want application.Role
		}{
			{role: "owner", want: application.RoleOwner},
			{role: "teacher", want: application.RoleOwner},
			{role: "member", want: application.RoleMember},
			{role: "nisit", want: application.RoleMember},
		}
		for _, tt := range tests {
			token := signHMAC(t, testSecret, gojwt.SigningMethodHS256, hmacClaims("user-1", tt.role))
			principal, err := resolver.Resolve(ctx, token)
			if err != nil {
				t.Fatalf("Resolve(%s) failed: %v", tt.role, err)
			}
			if principal.ID != "user-1" || principal.Role != tt.want {
				t.Fatalf("Resolve(%s) = %+v, want role %v", tt.role, principal, tt.want)
			}
		}
	})

	expired := hmacClaims("user-1", "owner")
	expired.ExpiresAt = gojwt.NewNumericDate(testNow.Add(-time.Hour))

	noExpiry := hmacClaims("user-1", "owner")
	noExpiry.ExpiresAt = nil

	wrongIssuer := hmacClaims("user-1", "owner")
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: "  "},
		{name: "garbage", token: "not.a.token"},
		{name: "wrong secret", token: signHMAC(t, "other-secret", gojwt.SigningMethodHS256, hmacClaims("user-1", "owner"))},
		{name: "wrong algorithm", token: signHMAC(t, testSecret, gojwt.SigningMethodHS512, hmacClaims("user-1", "owner"))},
		{name: "expired", token: signHMAC(t, testSecret, gojwt.SigningMethodHS256, expired)},
		{name: "no expiry", token: signHMAC(t, testSecret, gojwt.SigningMethodHS256, noExpiry)},
		{name: "wrong issuer", token: signHMAC(t, testSecret, gojwt.SigningMethodHS256, wrongIssuer)},
		{name: "unknown role", token: signHMAC(t, testSecret, gojwt.SigningMethodHS256, hmacClaims("user-1", "admin"))},
		{name: "missing role", token: signHMAC(t, testSecret, gojwt.SigningMethodHS256, hmacClaims("user-1", ""))},
		{name: "missing subject", token: signHMAC(t, testSecret, gojwt.SigningMethodHS256, hmacClaims(" ", "owner"))},
		{name: "reserved subject", token: signHMAC(t, testSecret, gojwt.SigningMethodHS256, hmacClaims("self", "member"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(ctx, tt.token)
			if !errors.Is(err, application.ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
			if tt.token != "" && strings.TrimSpace(tt.token) != "" && strings.Contains(err.Error(), tt.token) {
				t.Fatalf("error leaks token text: %v", err)
			}
		})
	}

	if _, err := NewHMACResolver(" "); err == nil {
		t.Fatalf("expected error for blank secret")
	}
}

type rsaKeys struct {
	private jwk.Key
	public  jwk.Set
}

func newRSAKeys(t *testing.T, kid string) rsaKeys {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	private, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("jwk.FromRaw failed: %v", err)
	}
	_ = private.Set(jwk.KeyIDKey, kid)
	_ = private.Set(jwk.AlgorithmKey, jwa.RS256)

	public, err := private.PublicKey()
	if err != nil {
		t.Fatalf("derive public key: %v", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(public); err != nil {
		t.Fatalf("add key: %v", err)
	}
	return rsaKeys{private: private, public: set}
}

func signRSA(t *testing.T, key jwk.Key, subject, role string, expires time.Time) string {
	t.Helper()

	builder := jwt.NewBuilder().
		Subject(subject).
		Issuer("https://id.example.com/").
		IssuedAt(testNow.Add(-time.Minute)).
		Expiration(expires)
	if role != "" {
		builder = builder.Claim(RoleClaim, role)
	}
	tok, err := builder.Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(signed)
}

func TestKeySetResolver(t *testing.T) {
	keys := newRSAKeys(t, "key-1")
	stranger := newRSAKeys(t, "key-1")

	resolver, err := NewKeySetResolver(keys.public, "https://id.example.com/")
	if err != nil {
		t.Fatalf("NewKeySetResolver failed: %v", err)
	}
	resolver.now = func() time.Time { return testNow }
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		principal, err := resolver.Resolve(ctx, signRSA(t, keys.private, "owner-a", "teacher", testNow.Add(time.Hour)))
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if principal.ID != "owner-a" || principal.Role != application.RoleOwner {
			t.Fatalf("unexpected principal %+v", principal)
		}
	})

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "expired", token: signRSA(t, keys.private, "owner-a", "owner", testNow.Add(-time.Hour))},
		{name: "unknown signer", token: signRSA(t, stranger.private, "owner-a", "owner", testNow.Add(time.Hour))},
		{name: "missing role", token: signRSA(t, keys.private, "owner-a", "", testNow.Add(time.Hour))},
		{name: "unknown role", token: signRSA(t, keys.private, "owner-a", "admin", testNow.Add(time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := resolver.Resolve(ctx, tt.token); !errors.Is(err, application.ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}

	t.Run("issuer mismatch", func(t *testing.T) {
		strict, err := NewKeySetResolver(keys.public, "https://other.example.com/")
		if err != nil {
			t.Fatalf("NewKeySetResolver failed: %v", err)
		}
		strict.now = func() time.Time { return testNow }
		token := signRSA(t, keys.private, "owner-a", "owner", testNow.Add(time.Hour))
		if _, err := strict.Resolve(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestRemoteKeySetResolver(t *testing.T) {
	keys := newRSAKeys(t, "key-remote")
	body, err := json.Marshal(keys.public)
	if err != nil {
		t.Fatalf("marshal key set: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver, err := NewRemoteKeySetResolver(ctx, server.URL, "", time.Minute)
	if err != nil {
		t.Fatalf("NewRemoteKeySetResolver failed: %v", err)
	}

	token := signRSA(t, keys.private, "member-m", "member", time.Now().Add(time.Hour))
	principal, err := resolver.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if principal.ID != "member-m" || principal.Role != application.RoleMember {
		t.Fatalf("unexpected principal %+v", principal)
	}

	t.Run("unreachable key set fails fast", func(t *testing.T) {
		if _, err := NewRemoteKeySetResolver(ctx, "http://127.0.0.1:1/jwks.json", "", time.Minute); err == nil {
			t.Fatalf("expected error for unreachable key set")
		}
	})
}

func TestResolverFunc(t *testing.T) {
	var resolver Resolver = ResolverFunc(func(ctx context.Context, token string) (application.Principal, error) {
		if token == "ok" {
			return application.Principal{ID: "p", Role: application.RoleMember}, nil
		}
		return application.Principal{}, ErrInvalidToken
	})

	if _, err := resolver.Resolve(context.Background(), "ok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := resolver.Resolve(context.Background(), "bad")
	if !IsUnauthenticated(err) {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}
}
