package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const (
	metricRequests = "lexpilot_http_requests_total"
	metricDuration = "lexpilot_http_request_duration_seconds"
	metricCache    = "lexpilot_cache_lookups_total"
)

// Metrics collects the Prometheus metrics exposed by the API.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricRequests,
		Help: "HTTP requests partitioned by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricDuration,
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricCache,
		Help: "Cache lookups partitioned by cache name and result.",
	}, []string{"cache", "result"})
	registry.MustRegister(requests, duration, cache)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		cacheLookups:    cache,
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

// Middleware records metrics for every HTTP request.
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

// ObserveCache counts a cache lookup.
func (m *Metrics) ObserveCache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Gatherer exposes the registry for reading metric families back.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.DefaultGatherer
	}
	return m.registry
}

// RequestSummary aggregates request and cache counters since start-up.
type RequestSummary struct {
	TotalRequests   uint64
	ServerErrors    uint64
	DurationSum     float64
	DurationSamples uint64
	CacheHits       uint64
	CacheMisses     uint64
}

// AvgResponseTime returns the mean request duration.
func (s RequestSummary) AvgResponseTime() time.Duration {
	if s.DurationSamples == 0 {
		return 0
	}
	return time.Duration(s.DurationSum / float64(s.DurationSamples) * float64(time.Second))
}

// ErrorRatePercent returns the share of 5xx responses.
func (s RequestSummary) ErrorRatePercent() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.ServerErrors) / float64(s.TotalRequests) * 100
}

// CacheHitRatePercent returns the share of cache lookups that hit.
func (s RequestSummary) CacheHitRatePercent() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total) * 100
}

// Summary reads the request and cache collectors back from the registry.
func (m *Metrics) Summary() (RequestSummary, error) {
	var summary RequestSummary
	if m == nil {
		return summary, nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return summary, fmt.Errorf("observability: gather: %w", err)
	}
	for _, family := range families {
		switch family.GetName() {
		case metricRequests:
			for _, metric := range family.GetMetric() {
				count := uint64(metric.GetCounter().GetValue())
				summary.TotalRequests += count
				if strings.HasPrefix(labelValue(metric, "code"), "5") {
					summary.ServerErrors += count
				}
			}
		case metricDuration:
			for _, metric := range family.GetMetric() {
				summary.DurationSum += metric.GetHistogram().GetSampleSum()
				summary.DurationSamples += metric.GetHistogram().GetSampleCount()
			}
		case metricCache:
			for _, metric := range family.GetMetric() {
				count := uint64(metric.GetCounter().GetValue())
				if labelValue(metric, "result") == "hit" {
					summary.CacheHits += count
				} else {
					summary.CacheMisses += count
				}
			}
		}
	}
	return summary, nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, label := range metric.GetLabel() {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
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
