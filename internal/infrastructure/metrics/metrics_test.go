package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Delivery("message_received", OutcomeDelivered)
	m.Delivery("message_received", OutcomeDelivered)
	m.Delivery("message_received", OutcomeSuppressed)
	m.Stored("http")
	m.ChannelOpened()
	m.ChannelOpened()
	m.ChannelClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("message_received", OutcomeDelivered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("message_received", OutcomeSuppressed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesStored.WithLabelValues("http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Channels))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Delivery("x", OutcomeFailed)
		m.Stored("ws")
		m.AuthFailure("ws")
		m.ChannelOpened()
		m.ChannelClosed()
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.AuthFailure("http")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `chat_auth_failures_total{entry="http"} 1`)
}
