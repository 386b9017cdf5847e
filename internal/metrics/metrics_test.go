package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	m := Init(true)
	require.NotNil(t, m)

	metrics, ok := m.(*Metrics)
	require.True(t, ok, "Init(true) should return *Metrics")
	assert.NotNil(t, metrics.TokensIssuedTotal)
	assert.NotNil(t, metrics.HookDeliveriesTotal)
	assert.NotNil(t, metrics.HTTPRequestsTotal)

	assert.Same(t, metrics, Init(true), "registration happens once")
}

func TestInitNoop(t *testing.T) {
	m := Init(false)
	_, ok := m.(*NoopMetrics)
	assert.True(t, ok, "Init(false) should return *NoopMetrics")

	// Every method is callable
	m.RecordTokenIssued("access", time.Millisecond)
	m.RecordTokenVerification("access", "valid")
	m.RecordHookDelivery("webhook", false, time.Second)
	m.SetLiveChannelsConnected(3)
	m.RecordLogout()
}

func TestRecordTokenMetrics(t *testing.T) {
	m := Init(true).(*Metrics)

	before := testutil.ToFloat64(m.TokensIssuedTotal.WithLabelValues("access"))
	m.RecordTokenIssued("access", 3*time.Millisecond)
	assert.InDelta(t, before+1, testutil.ToFloat64(m.TokensIssuedTotal.WithLabelValues("access")), 0)

	before = testutil.ToFloat64(m.TokenVerificationsTotal.WithLabelValues("refresh", "expired"))
	m.RecordTokenVerification("refresh", "expired")
	assert.InDelta(t, before+1,
		testutil.ToFloat64(m.TokenVerificationsTotal.WithLabelValues("refresh", "expired")), 0)

	before = testutil.ToFloat64(m.TokensRefreshedTotal.WithLabelValues(resultError))
	m.RecordTokenRefresh(false)
	assert.InDelta(t, before+1, testutil.ToFloat64(m.TokensRefreshedTotal.WithLabelValues(resultError)), 0)
}

func TestRecordHookDelivery(t *testing.T) {
	m := Init(true).(*Metrics)

	ok := testutil.ToFloat64(m.HookDeliveriesTotal.WithLabelValues("webhook", resultSuccess))
	failed := testutil.ToFloat64(m.HookDeliveriesTotal.WithLabelValues("live", resultFailure))

	m.RecordHookDelivery("webhook", true, 20*time.Millisecond)
	m.RecordHookDelivery("live", false, time.Second)

	assert.InDelta(t, ok+1, testutil.ToFloat64(m.HookDeliveriesTotal.WithLabelValues("webhook", resultSuccess)), 0)
	assert.InDelta(t, failed+1, testutil.ToFloat64(m.HookDeliveriesTotal.WithLabelValues("live", resultFailure)), 0)

	m.SetLiveChannelsConnected(2)
	assert.InDelta(t, 2, testutil.ToFloat64(m.LiveChannelsConnected), 0)
}

func TestRecordAuthMetrics(t *testing.T) {
	m := Init(true).(*Metrics)

	before := testutil.ToFloat64(m.AuthLoginTotal.WithLabelValues("github", resultFailure))
	m.RecordLogin("github", false)
	assert.InDelta(t, before+1, testutil.ToFloat64(m.AuthLoginTotal.WithLabelValues("github", resultFailure)), 0)

	before = testutil.ToFloat64(m.AuthLogoutTotal)
	m.RecordLogout()
	assert.InDelta(t, before+1, testutil.ToFloat64(m.AuthLogoutTotal), 0)

	m.RecordOAuthCallback("discord", true)
	m.RecordKeyGeneration(true)
	m.SetUsersCount(7)
	m.SetServicesCount(2)
	assert.InDelta(t, 7, testutil.ToFloat64(m.UsersTotal), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ServicesTotal), 0)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := Init(true).(*Metrics)

	r := gin.New()
	r.Use(HTTPMetricsMiddleware(m))
	r.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/users/:id", "200"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/42", nil))
	assert.InDelta(t, before+1,
		testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/users/:id", "200")), 0)
}

func TestHTTPMetricsMiddleware_SkipsAndUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := Init(true).(*Metrics)

	r := gin.New()
	r.Use(HTTPMetricsMiddleware(m))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	health := m.HTTPRequestsTotal.WithLabelValues("GET", "/health", "200")
	unmatched := m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")
	beforeHealth, beforeUnmatched := testutil.ToFloat64(health), testutil.ToFloat64(unmatched)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin.php", nil))

	assert.InDelta(t, beforeHealth, testutil.ToFloat64(health), 0)
	assert.InDelta(t, beforeUnmatched+1, testutil.ToFloat64(unmatched), 0)
}

func TestHTTPMetricsMiddleware_Noop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware(NewNoopMetrics()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}
