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

	"foodcoop/internal/domain/orders"
)

func TestTransitionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTransitionMetrics(reg)

	m.ObserveTransition(orders.TransitionClose, "ok", 20*time.Millisecond)
	m.ObserveTransition(orders.TransitionClose, "ok", 30*time.Millisecond)
	m.ObserveTransition(orders.TransitionFinish, "SETTLEMENT_ERROR", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.total.WithLabelValues("close", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.total.WithLabelValues("finish", "SETTLEMENT_ERROR")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Requests.WithLabelValues("GET", "/api/v1/orders/:id", "200").Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `foodcoop_http_requests_total{method="GET",route="/api/v1/orders/:id",status="200"} 1`))
}
