package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wasipo/harbor-sub000/internal/infra/telemetry"
)

// Admin calls are database bound; anything past 5s is a timeout in practice.
var latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

const unmatchedRoute = "unmatched"

// HTTPMetrics holds the request collectors, labelled by gin route template rather than raw path.
type HTTPMetrics struct {
	Requests     *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	ResponseSize *prometheus.HistogramVec
	InFlight     prometheus.Gauge
}

// NewHTTPMetrics registers the collectors on reg. It panics if they are already registered there.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: telemetry.Namespace, Subsystem: "http", Name: name, Help: help}
	}

	return &HTTPMetrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts(opts("requests_total", "HTTP requests by method, route and status code.")),
			[]string{"method", "route", "code"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: telemetry.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   latencyBuckets,
		}, []string{"method", "route"}),
		ResponseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: telemetry.Namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response body size by route.",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 7),
		}, []string{"route"}),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts(opts("in_flight_requests", "HTTP requests currently being served."))),
	}
}

// Handler records every request. A nil receiver yields a pass-through handler.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		m.InFlight.Inc()
		start := time.Now()

		c.Next()

		elapsed := time.Since(start).Seconds()
		m.InFlight.Dec()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method
		m.Requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.Duration.WithLabelValues(method, route).Observe(elapsed)
		if size := c.Writer.Size(); size > 0 {
			m.ResponseSize.WithLabelValues(route).Observe(float64(size))
		}
	}
}
