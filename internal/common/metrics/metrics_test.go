package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestInit(t *testing.T) {
	t.Run("多次初始化不冲突", func(t *testing.T) {
		a := Init("")
		b := Init("")
		require.NotNil(t, a)
		require.NotNil(t, b)
		assert.NotSame(t, a.Registry(), b.Registry())
	})
}

func TestMetrics_BusinessCounters(t *testing.T) {
	m := Init("test_business")

	m.RecordBillCreated("created", 3670.10)
	m.RecordBillCreated("created", 100)
	m.RecordBillCreated("duplicate", 0)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.billsCreatedTotal.WithLabelValues("created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.billsCreatedTotal.WithLabelValues("duplicate")))
	assert.InDelta(t, 3770.10, testutil.ToFloat64(m.billAmountTotal), 0.001)

	m.RecordNotification("line", "sent")
	m.RecordNotification("sms", "failed")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.billNotificationsTotal.WithLabelValues("sms", "failed")))

	m.RecordBinding("expire", 3)
	m.RecordBinding("expire", 0)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.bindingsTotal.WithLabelValues("expire")))

	m.RecordJobRun("expire_bindings", nil)
	m.RecordJobRun("expire_bindings", errors.New("db down"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.scheduledJobRunsTotal.WithLabelValues("expire_bindings", "error")))

	m.RecordMeterReading("mqtt", "accepted")
	m.RecordPayment("slip_uploaded")
	m.RecordMQTTMessage("meters/W-1/reading", "inbound")
	m.SetActiveBindings(12)
	assert.Equal(t, float64(12), testutil.ToFloat64(m.activeBindings))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordBillCreated("created", 1)
		m.RecordNotification("line", "sent")
		m.RecordBinding("bind", 1)
		m.RecordJobRun("x", nil)
		m.SetActiveBindings(1)
	})
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	m := Init("test_http")

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/api/locks", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", m.Handler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/locks", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/locks", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "test_http_http_requests_total")
	assert.Contains(t, body, "go_goroutines")
}
