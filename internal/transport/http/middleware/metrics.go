package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests that hit no registered route so raw paths carrying license keys never become label values.
const unmatchedRoute = "unmatched"

// licenseBuckets favour the sub-second range; marketplace round trips land in the upper buckets.
var licenseBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// HTTPMetricsOptions configures the HTTP metrics middleware.
type HTTPMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// HTTPMetrics counts responses by status class and failed responses by envelope code.
type HTTPMetrics struct {
	Responses *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
	Failures  *prometheus.CounterVec
}

// NewHTTPMetrics registers the HTTP collectors. Collectors already present on the registerer are reused.
func NewHTTPMetrics(opts HTTPMetricsOptions) (*HTTPMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "liceinc"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = licenseBuckets
	}

	responses, err := register(reg, "responses", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "responses_total",
		Help:      "HTTP responses by method, route template and status class.",
	}, []string{"method", "route", "class"}))
	if err != nil {
		return nil, err
	}

	latency, err := register(reg, "latency", prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "response_seconds",
		Help:      "Time to produce an HTTP response, by route template.",
		Buckets:   buckets,
	}, []string{"route"}))
	if err != nil {
		return nil, err
	}

	failures, err := register(reg, "failures", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "error_envelopes_total",
		Help:      "Error envelopes returned, by route template and envelope code.",
	}, []string{"route", "code"}))
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{Responses: responses, Latency: latency, Failures: failures}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, name string, collector C) (C, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}
	already, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		return collector, fmt.Errorf("register %s collector: %w", name, err)
	}
	existing, ok := already.ExistingCollector.(C)
	if !ok {
		return collector, fmt.Errorf("existing %s collector has unexpected type %T", name, already.ExistingCollector)
	}
	return existing, nil
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}

// Handler returns a Gin middleware that records the HTTP metrics.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		m.Responses.WithLabelValues(c.Request.Method, route, statusClass(c.Writer.Status())).Inc()
		m.Latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		if code := ErrorCode(c); code != "" {
			m.Failures.WithLabelValues(route, code).Inc()
		}
	}
}
