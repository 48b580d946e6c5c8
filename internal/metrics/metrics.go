// Package metrics provides Prometheus instrumentation for the price tracker.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes recorded by the price store.
const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeSuperseded = "superseded"
	OutcomeCanceled   = "canceled"
)

// Refresh triggers.
const (
	TriggerInitial  = "initial"
	TriggerTick     = "tick"
	TriggerCurrency = "currency"
	TriggerManual   = "manual"
)

var (
	// PriceFetchesTotal counts completed fetches by outcome.
	PriceFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airdrop_price_fetches_total",
		Help: "Completed price fetches by outcome",
	}, []string{"outcome"})

	// PriceFetchDuration tracks how long the provider takes to answer.
	PriceFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "airdrop_price_fetch_duration_seconds",
		Help:    "Price fetch latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// PriceRefreshesTotal counts issued refreshes by trigger.
	PriceRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airdrop_price_refreshes_total",
		Help: "Price refreshes issued by trigger",
	}, []string{"trigger"})

	// LastSuccessTimestamp is the unix time of the last committed snapshot.
	LastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airdrop_price_last_success_timestamp_seconds",
		Help: "Unix time of the last committed price snapshot",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airdrop_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airdrop_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "airdrop_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern uses the matched chi pattern to keep label cardinality bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack passes WebSocket upgrades through to the underlying writer.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
