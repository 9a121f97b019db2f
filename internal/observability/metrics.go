// Package observability exposes Prometheus metrics and Sentry error reporting.
package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ascendfit/internal/core"
	"ascendfit/internal/extract"
)

const namespace = "ascendfit"

// Metrics records service activity. It satisfies providers.CallObserver and
// extract.Recorder. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpInFlight      prometheus.Gauge
	providerCalls     *prometheus.CounterVec
	providerDuration  *prometheus.HistogramVec
	parseErrors       *prometheus.CounterVec
	featureRequests   *prometheus.CounterVec
	featureDuration   *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
	pollAttempts      prometheus.Histogram
	videoUploadedSize prometheus.Histogram
}

// NewMetrics registers every collector on reg. Pass prometheus.DefaultRegisterer
// in production so collectors registered elsewhere are exported too.
func NewMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total AI provider calls by outcome.",
		}, []string{"provider", "operation", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "AI provider call duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"provider", "operation"}),
		parseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "parse_errors_total",
			Help:      "Recovered structured output parse errors.",
		}, []string{"tool", "source"}),
		featureRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feature",
			Name:      "requests_total",
			Help:      "Total feature requests by outcome and extraction source.",
		}, []string{"feature", "outcome", "source"}),
		featureDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feature",
			Name:      "duration_seconds",
			Help:      "End-to-end feature duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"feature"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by result.",
		}, []string{"feature", "result"}),
		pollAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "video",
			Name:      "poll_attempts",
			Help:      "Status checks needed before an uploaded video became active.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 30},
		}),
		videoUploadedSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "video",
			Name:      "upload_bytes",
			Help:      "Size of uploaded workout videos.",
			Buckets:   prometheus.ExponentialBuckets(256<<10, 2, 10),
		}),
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.httpInFlight,
		m.providerCalls,
		m.providerDuration,
		m.parseErrors,
		m.featureRequests,
		m.featureDuration,
		m.cacheLookups,
		m.pollAttempts,
		m.videoUploadedSize,
	)
	return m
}

// Handler serves the gathered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveProviderCall implements providers.CallObserver.
func (m *Metrics) ObserveProviderCall(provider, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, operation, outcome(err)).Inc()
	m.providerDuration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

// RecordParseError implements extract.Recorder.
func (m *Metrics) RecordParseError(tool string, source extract.Source) {
	if m == nil {
		return
	}
	if tool == "" {
		tool = "none"
	}
	m.parseErrors.WithLabelValues(tool, string(source)).Inc()
}

// RecordFeature counts one finished feature request.
func (m *Metrics) RecordFeature(feature string, err error, source string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	m.featureRequests.WithLabelValues(feature, outcome(err), source).Inc()
	m.featureDuration.WithLabelValues(feature).Observe(elapsed.Seconds())
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(feature string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(feature, result).Inc()
}

// ObserveVideo records the upload size and how many polls it took.
func (m *Metrics) ObserveVideo(sizeBytes int64, pollAttempts int) {
	if m == nil {
		return
	}
	m.videoUploadedSize.Observe(float64(sizeBytes))
	if pollAttempts > 0 {
		m.pollAttempts.Observe(float64(pollAttempts))
	}
}

// Middleware records request counts and latency by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()

			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			m.httpRequests.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(core.KindOf(err))
}
