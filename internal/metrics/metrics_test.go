package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveTool("search_ncd", "success", time.Second)
		m.ObserveCache(true)
		m.ObserveEngine(errors.New("x"))
		m.ObserveUsage("failed")
		m.ObserveChat("stream", http.StatusOK)
	})
}

func TestCountersAndHandler(t *testing.T) {
	m := New()

	m.ObserveTool("search_ncd", "success", 20*time.Millisecond)
	m.ObserveTool("search_ncd", "success", 30*time.Millisecond)
	m.ObserveCache(false)
	m.ObserveCache(true)
	m.ObserveCache(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("search_ncd", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "priorauth_tool_invocations_total"))
}
