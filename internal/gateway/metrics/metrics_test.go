package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.ObserveFrame("search_new", "ok", 3*time.Millisecond)
	m.ObserveFrame("search_new", "auth_failed", time.Millisecond)
	m.ObserveFrame("", "invalid_payload", time.Millisecond)
	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()
	m.Delivered(3)
	m.MarkedSeen(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.frames.WithLabelValues("search_new", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.frames.WithLabelValues("none", "invalid_payload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.delivered))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.markedSeen))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFrame("search_new", "ok", time.Millisecond)
		m.ConnOpened()
		m.ConnClosed()
		m.Delivered(1)
		m.MarkedSeen(1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Delivered(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mixchat_messages_delivered_total 1")
}
