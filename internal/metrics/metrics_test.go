package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRemoteCall("storage", "success")
		m.ObserveStage("stored", time.Second)
		m.ObserveIngest("success", "succeeded")
		m.ObserveStoredUnlinked()
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRemoteCall("storage", "success")
	m.ObserveRemoteCall("storage", "success")
	m.ObserveIngest("failure", "accession_resolved")
	m.ObserveStoredUnlinked()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RemoteCallsTotal.WithLabelValues("storage", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestRequestsTotal.WithLabelValues("failure", "accession_resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoredUnlinkedTotal))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := m.Middleware(mux)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	for _, path := range []string{"/nope/1", "/nope/2", "/nope/3"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /health", "418")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPRequestsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "http_requests_total"))
}
