// Package observability collects Prometheus metrics for the engine.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus registry and the application metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	interestRuns    *prometheus.CounterVec
	interestAmount  prometheus.Counter
	allocationLinks prometheus.Counter
	ratingUpdates   prometheus.Counter
	agingSnapshots  *prometheus.CounterVec
}

// NewMetrics initializes the registry and the base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	interestRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_interest_runs_total",
		Help: "Interest batch runs by outcome.",
	}, []string{"outcome"})
	interestAmount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_interest_postings_total",
		Help: "Ledger postings written by committed interest runs.",
	})
	allocationLinks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_allocation_links_total",
		Help: "Allocation links committed.",
	})
	ratingUpdates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_rating_updates_total",
		Help: "Credit ratings written by refresh runs.",
	})
	agingSnapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_aging_snapshots_total",
		Help: "Aged-balance snapshots served by source.",
	}, []string{"source"})
	registry.MustRegister(requests, duration, interestRuns, interestAmount, allocationLinks, ratingUpdates, agingSnapshots)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		interestRuns:    interestRuns,
		interestAmount:  interestAmount,
		allocationLinks: allocationLinks,
		ratingUpdates:   ratingUpdates,
		agingSnapshots:  agingSnapshots,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveInterestRun records the outcome of a batch run. Committed runs also
// count their postings.
func (m *Metrics) ObserveInterestRun(outcome string, postings int) {
	if m == nil {
		return
	}
	m.interestRuns.WithLabelValues(outcome).Inc()
	if postings > 0 {
		m.interestAmount.Add(float64(postings))
	}
}

// ObserveAllocation records links committed by a completed session.
func (m *Metrics) ObserveAllocation(links int) {
	if m == nil || links <= 0 {
		return
	}
	m.allocationLinks.Add(float64(links))
}

// ObserveRatingUpdates records ratings written by a refresh run.
func (m *Metrics) ObserveRatingUpdates(updated int) {
	if m == nil || updated <= 0 {
		return
	}
	m.ratingUpdates.Add(float64(updated))
}

// ObserveAgingSnapshot records a served snapshot, source "cache" or "build".
func (m *Metrics) ObserveAgingSnapshot(source string) {
	if m == nil {
		return
	}
	m.agingSnapshots.WithLabelValues(source).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
