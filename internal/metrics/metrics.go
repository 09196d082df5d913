package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the payment flows and HTTP traffic.
type Metrics struct {
	IntentsCreated  *prometheus.CounterVec
	IntentsReused   *prometheus.CounterVec
	Confirmations   *prometheus.CounterVec
	SweepDeleted    *prometheus.CounterVec
	GatewayErrors   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IntentsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camp_payment_intents_created_total",
			Help: "Payment intents created at the gateway, by flow",
		}, []string{"flow"}),
		IntentsReused: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camp_payment_intents_reused_total",
			Help: "Existing open payment intents handed back instead of creating new ones",
		}, []string{"flow"}),
		Confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camp_payment_confirmations_total",
			Help: "Payment confirmations by flow and outcome",
		}, []string{"flow", "outcome"}),
		SweepDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camp_sweep_deleted_total",
			Help: "Abandoned pending records removed by the sweeper",
		}, []string{"resource"}),
		GatewayErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camp_gateway_errors_total",
			Help: "Failed gateway calls by operation",
		}, []string{"op"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "camp_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IntentCreated(flow string) {
	if m != nil {
		m.IntentsCreated.WithLabelValues(flow).Inc()
	}
}

func (m *Metrics) IntentReused(flow string) {
	if m != nil {
		m.IntentsReused.WithLabelValues(flow).Inc()
	}
}

func (m *Metrics) Confirmation(flow, outcome string) {
	if m != nil {
		m.Confirmations.WithLabelValues(flow, outcome).Inc()
	}
}

func (m *Metrics) Swept(resource string, n int) {
	if m != nil && n > 0 {
		m.SweepDeleted.WithLabelValues(resource).Add(float64(n))
	}
}

func (m *Metrics) GatewayError(op string) {
	if m != nil {
		m.GatewayErrors.WithLabelValues(op).Inc()
	}
}

// Middleware records request latency labelled by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
