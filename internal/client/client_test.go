package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		w.Write([]byte(`{"status": "ok", "version": "1.0", "db": true, "ai": true, "ai_breaker": "half-open"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0", h.Version)
	assert.True(t, h.DB)
	assert.Equal(t, "half-open", h.AIBreaker)
	assert.True(t, c.Healthy(context.Background()))
}

func TestHealthDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status": "degraded", "db": false}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	h, err := c.Health(context.Background())
	require.Error(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "degraded", h.Status)
	assert.False(t, c.Healthy(context.Background()))
}

func TestHealthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, "")
	_, err := c.Health(context.Background())
	assert.Error(t, err)
	assert.False(t, c.Healthy(context.Background()))
}

func TestTriggerRescue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/cron/weekly-rescue", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "invalid cron secret"}`))
			return
		}
		w.Write([]byte(`{"users": 2, "suggested": 3, "skipped": 1, "failed": 0}`))
	}))
	defer srv.Close()

	report, err := New(srv.URL, "s3cret").TriggerRescue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Users)
	assert.Equal(t, 3, report.Suggested)

	_, err = New(srv.URL, "wrong").TriggerRescue(context.Background())
	assert.ErrorContains(t, err, "status 401")

	_, err = New(srv.URL, "").TriggerRescue(context.Background())
	assert.Error(t, err)
}

func TestNewDefaultsURL(t *testing.T) {
	t.Setenv("REMEMBER_URL", "")
	assert.Equal(t, defaultServerURL, New("", "").serverURL)

	t.Setenv("REMEMBER_URL", "http://example.test")
	assert.Equal(t, "http://example.test", New("", "").serverURL)
}
