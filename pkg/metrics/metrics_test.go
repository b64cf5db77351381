package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.StatementsParsed.WithLabelValues("format_a", "ok").Inc()
	m.StatementsParsed.WithLabelValues("format_a", "ok").Inc()
	m.TransactionsParsed.WithLabelValues("format_b").Add(12)
	m.DuplicatesFound.Add(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StatementsParsed.WithLabelValues("format_a", "ok")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.TransactionsParsed.WithLabelValues("format_b")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DuplicatesFound))
}

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest(http.MethodPost, "/v1/statements/parse", http.StatusBadRequest, 15*time.Millisecond)
	m.ObserveStage("extract", time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/v1/statements/parse", "400")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.UploadsSwept.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "subscription_tracker_uploads_swept_total 1")
}
