package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/config"
)

const secret = "super-secret-jwt-token-with-at-least-32-characters"

func sign(t *testing.T, key string, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return tok
}

func validClaims() Claims {
	return Claims{
		Email: "ada@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "8f14e45f-ceea-467f-a0e6-0d8d8f6c9b1a",
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestJWTVerifier(t *testing.T) {
	v, err := NewJWTVerifier(secret)
	require.NoError(t, err)

	u, err := v.Verify(context.Background(), sign(t, secret, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "8f14e45f-ceea-467f-a0e6-0d8d8f6c9b1a", u.ID)
	assert.Equal(t, "ada@example.com", u.Email)
}

func TestJWTVerifierRejects(t *testing.T) {
	v, err := NewJWTVerifier(secret)
	require.NoError(t, err)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	anon := validClaims()
	anon.Audience = jwt.ClaimStrings{"anon"}

	noSub := validClaims()
	noSub.Subject = ""

	noExp := validClaims()
	noExp.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong key", sign(t, "another-secret", validClaims())},
		{"expired", sign(t, secret, expired)},
		{"wrong audience", sign(t, secret, anon)},
		{"no subject", sign(t, secret, noSub)},
		{"no expiry", sign(t, secret, noExp)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "got %v", err)
		})
	}
}

func TestNewVerifier(t *testing.T) {
	v, err := NewVerifier(config.AuthConfig{Mode: "jwt", JWTSecret: secret})
	require.NoError(t, err)
	assert.IsType(t, &JWTVerifier{}, v)

	_, err = NewVerifier(config.AuthConfig{Mode: "jwt"})
	assert.Error(t, err)

	_, err = NewVerifier(config.AuthConfig{Mode: "supabase"})
	assert.Error(t, err)

	_, err = NewVerifier(config.AuthConfig{Mode: "magic"})
	assert.Error(t, err)
}

func TestSupabaseVerifier(t *testing.T) {
	v := &SupabaseVerifier{lookup: func(token string) (*User, error) {
		if token == "good" {
			return &User{ID: "u1", Email: "ada@example.com"}, nil
		}
		return nil, errors.New("401")
	}}

	u, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = v.Verify(context.Background(), "bad")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func failWith(w http.ResponseWriter, _ *http.Request, err error) {
	http.Error(w, err.Error(), apperr.HTTPStatus(err))
}

func TestMiddleware(t *testing.T) {
	v, err := NewJWTVerifier(secret)
	require.NoError(t, err)

	var seen string
	h := Middleware(v, failWith)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/persons", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest("GET", "/api/persons", nil)
	req.Header.Set("Authorization", "bearer "+sign(t, secret, validClaims()))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "8f14e45f-ceea-467f-a0e6-0d8d8f6c9b1a", seen)
}

func TestCronMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"match", "cron-s3cret", "Bearer cron-s3cret", http.StatusOK},
		{"mismatch", "cron-s3cret", "Bearer nope", http.StatusUnauthorized},
		{"missing", "cron-s3cret", "", http.StatusUnauthorized},
		{"unconfigured", "", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/cron/weekly-rescue", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			CronMiddleware(tt.secret, failWith)(ok).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
