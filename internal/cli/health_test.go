package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rememberme/rememberme/internal/client"
)

func TestServerHealthPrintsReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "version": "1.2.0", "uptime": 90, "db": true, "ai": true, "ai_breaker": "open"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, serverHealth(context.Background(), client.New(srv.URL, ""), &out))
	assert.Contains(t, out.String(), "1.2.0")
	assert.Contains(t, out.String(), "1m30s")
	assert.Contains(t, out.String(), "up (breaker open)")
	assert.Regexp(t, `calendar\s+down`, out.String())
}

func TestServerHealthDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status": "degraded", "db": false}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := serverHealth(context.Background(), client.New(srv.URL, ""), &out)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "degraded")
	assert.Regexp(t, `database\s+down`, out.String())
}

func TestServerHealthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var out bytes.Buffer
	err := serverHealth(context.Background(), client.New(url, ""), &out)
	assert.ErrorContains(t, err, "unreachable")
	assert.Empty(t, out.String())
}
