package metrics

import (
	"sync"

	"github.com/go-authgate/identitygate/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Recorder = core.Recorder

var _ Recorder = (*Metrics)(nil)

// Metrics is the Prometheus-backed Recorder.
type Metrics struct {
	TokensIssuedTotal       *prometheus.CounterVec
	TokenGenerationDuration *prometheus.HistogramVec
	TokenVerificationsTotal *prometheus.CounterVec
	TokensRefreshedTotal    *prometheus.CounterVec

	AuthLoginTotal         *prometheus.CounterVec
	AuthLogoutTotal        prometheus.Counter
	AuthOAuthCallbackTotal *prometheus.CounterVec

	HookDeliveriesTotal   *prometheus.CounterVec
	HookDeliveryDuration  *prometheus.HistogramVec
	LiveChannelsConnected prometheus.Gauge

	KeyGenerationsTotal *prometheus.CounterVec

	UsersTotal    prometheus.Gauge
	ServicesTotal prometheus.Gauge

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init returns the process-wide Prometheus recorder, registering its series on
// first use. Disabled metrics get a NoopMetrics.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}
	once.Do(func() {
		defaultMetrics = newMetrics(promauto.With(prometheus.DefaultRegisterer))
	})
	return defaultMetrics
}

var (
	deliveryBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	latencyBuckets  = []float64{
		0.001, 0.005, 0.010, 0.025, 0.050, 0.100,
		0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
	}
)

func newMetrics(f promauto.Factory) *Metrics {
	counters := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	}
	histograms := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return f.NewHistogramVec(
			prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets},
			labels,
		)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	return &Metrics{
		TokensIssuedTotal: counters("identity_tokens_issued_total",
			"Tokens signed, by class", "class"),
		TokenGenerationDuration: histograms("identity_token_generation_duration_seconds",
			"Time spent signing a token", prometheus.DefBuckets, "class"),
		TokenVerificationsTotal: counters("identity_token_verifications_total",
			"Token verifications by class and result (valid, invalid, expired)", "class", "result"),
		TokensRefreshedTotal: counters("identity_tokens_refreshed_total",
			"Refresh attempts by result", "result"),

		AuthLoginTotal: counters("auth_login_total",
			"Login attempts by method (local, signup or provider) and result", "method", "result"),
		AuthLogoutTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_logout_total",
			Help: "Logouts",
		}),
		AuthOAuthCallbackTotal: counters("auth_oauth_callback_total",
			"OAuth provider callbacks by result", "provider", "result"),

		HookDeliveriesTotal: counters("hook_deliveries_total",
			"Login event deliveries by channel (webhook, live) and result", "channel", "result"),
		HookDeliveryDuration: histograms("hook_delivery_duration_seconds",
			"Duration of a single delivery attempt", deliveryBuckets, "channel"),
		LiveChannelsConnected: gauge("live_channels_connected",
			"Services currently holding a live channel"),

		KeyGenerationsTotal: counters("key_generations_total",
			"Service key pair generations by result", "result"),

		UsersTotal:    gauge("identity_users", "Registered users"),
		ServicesTotal: gauge("identity_services", "Registered services"),

		HTTPRequestsTotal: counters("http_requests_total",
			"HTTP requests by method, route and status", "method", "path", "status"),
		HTTPRequestDuration: histograms("http_request_duration_seconds",
			"HTTP request latency", latencyBuckets, "method", "path"),
		HTTPRequestsInFlight: gauge("http_requests_in_flight",
			"HTTP requests currently being served"),

		DatabaseQueryErrorsTotal: counters("database_query_errors_total",
			"Failed gauge collection queries by operation", "operation"),
	}
}
