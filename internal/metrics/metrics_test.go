package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAI(t *testing.T) {
	m := New()
	m.ObserveAI("summary", nil)
	m.ObserveAI("summary", errors.New("x"))
	m.ObserveAI("summary", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AICalls.WithLabelValues("summary", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AICalls.WithLabelValues("summary", "error")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAI("summary", nil)
	m.ObserveSync("google", nil)
	m.MergePerformed()
	m.RescueSuggested()
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ContactCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "rememberme_contacts_created_total 1")
}
