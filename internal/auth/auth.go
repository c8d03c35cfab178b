// Package auth verifies Supabase access tokens and carries the caller's
// identity through request contexts.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/supabase-community/supabase-go"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/config"
)

// Audience is the aud claim Supabase puts on signed-in users' tokens.
const Audience = "authenticated"

// User is the authenticated caller.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Verifier turns a bearer token into a User.
type Verifier interface {
	Verify(ctx context.Context, token string) (*User, error)
}

// NewVerifier picks the verifier for the configured mode.
func NewVerifier(cfg config.AuthConfig) (Verifier, error) {
	switch cfg.Mode {
	case "", "jwt":
		return NewJWTVerifier(cfg.JWTSecret)
	case "supabase":
		return NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseKey)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// Claims are the Supabase access token claims we read.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier checks tokens locally against the project's JWT secret.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewJWTVerifier checks tokens signed with the project's shared HS256 secret.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required for jwt auth mode")
	}
	return &JWTVerifier{secret: []byte(secret), now: time.Now}, nil
}

// Verify accepts an unexpired HS256 token for the authenticated audience
// and returns its subject as the user. Every failure is Unauthorized.
func (v *JWTVerifier) Verify(_ context.Context, token string) (*User, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthorized("token has expired")
		}
		return nil, apperr.Unauthorized("invalid token")
	}
	if claims.Subject == "" {
		return nil, apperr.Unauthorized("token has no subject")
	}
	return &User{ID: claims.Subject, Email: claims.Email}, nil
}

// SupabaseVerifier asks the Supabase auth API who the token belongs to.
type SupabaseVerifier struct {
	lookup func(token string) (*User, error)
}

// NewSupabaseVerifier resolves tokens through the Supabase auth API using
// the service role key.
func NewSupabaseVerifier(url, serviceKey string) (*SupabaseVerifier, error) {
	if url == "" || serviceKey == "" {
		return nil, errors.New("supabase url and service role key are required for supabase auth mode")
	}
	client, err := supabase.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &SupabaseVerifier{lookup: func(token string) (*User, error) {
		resp, err := client.Auth.WithToken(token).GetUser()
		if err != nil {
			return nil, err
		}
		return &User{ID: resp.ID.String(), Email: resp.Email}, nil
	}}, nil
}

func (v *SupabaseVerifier) Verify(_ context.Context, token string) (*User, error) {
	u, err := v.lookup(token)
	if err != nil || u == nil || u.ID == "" {
		return nil, apperr.Unauthorized("invalid token")
	}
	return u, nil
}

type ctxKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the user stored by Middleware, or nil.
func UserFrom(ctx context.Context) *User {
	u, _ := ctx.Value(ctxKey{}).(*User)
	return u
}

// UserID is a shortcut for UserFrom(ctx).ID; empty when unauthenticated.
func UserID(ctx context.Context) string {
	if u := UserFrom(ctx); u != nil {
		return u.ID
	}
	return ""
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// ErrorWriter renders an error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware rejects requests without a valid bearer token and stores the
// caller in the request context.
func Middleware(v Verifier, fail ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				fail(w, r, apperr.Unauthorized("missing bearer token"))
				return
			}
			u, err := v.Verify(r.Context(), token)
			if err != nil {
				fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// CronMiddleware admits only requests bearing the cron secret. An empty
// secret disables the routes entirely.
func CronMiddleware(secret string, fail ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				fail(w, r, apperr.Unauthorized("cron is not configured"))
				return
			}
			token := BearerToken(r)
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				fail(w, r, apperr.Unauthorized("invalid cron secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
