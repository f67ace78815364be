package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LicensingMetricsOptions configures the licensing collectors.
type LicensingMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// LicensingMetrics records verification, remote call and activation outcomes in Prometheus.
type LicensingMetrics struct {
	Verifications *prometheus.CounterVec
	Latency       *prometheus.HistogramVec
	RemoteCalls   *prometheus.CounterVec
	Activations   *prometheus.CounterVec
}

// NewLicensingMetrics constructs and registers the collectors. Collectors already registered are reused.
func NewLicensingMetrics(opts LicensingMetricsOptions) (*LicensingMetrics, error) {
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
		buckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	}

	verifications, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "verification",
		Name:      "requests_total",
		Help:      "License verifications partitioned by lookup source and outcome.",
	}, []string{"source", "outcome"})
	if err != nil {
		return nil, err
	}

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "verification",
		Name:      "duration_seconds",
		Help:      "License verification latency in seconds partitioned by lookup source and outcome.",
		Buckets:   buckets,
	}, []string{"source", "outcome"})
	if err := reg.Register(latency); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register verification latency collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("existing latency collector has unexpected type %T", already.ExistingCollector)
		}
		latency = existing
	}

	remote, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "marketplace",
		Name:      "calls_total",
		Help:      "Remote marketplace verification calls partitioned by result.",
	}, []string{"result"})
	if err != nil {
		return nil, err
	}

	activations, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "activation",
		Name:      "requests_total",
		Help:      "Domain activation attempts partitioned by outcome.",
	}, []string{"outcome"})
	if err != nil {
		return nil, err
	}

	return &LicensingMetrics{
		Verifications: verifications,
		Latency:       latency,
		RemoteCalls:   remote,
		Activations:   activations,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register %s collector: %w", opts.Name, err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", opts.Name, already.ExistingCollector)
		}
		return existing, nil
	}
	return vec, nil
}

// ObserveVerification records one verification outcome.
func (m *LicensingMetrics) ObserveVerification(source, outcome string, duration time.Duration) {
	m.Verifications.WithLabelValues(source, outcome).Inc()
	m.Latency.WithLabelValues(source, outcome).Observe(duration.Seconds())
}

// IncRemoteCall records one marketplace call result.
func (m *LicensingMetrics) IncRemoteCall(result string) {
	m.RemoteCalls.WithLabelValues(result).Inc()
}

// IncActivation records one activation outcome.
func (m *LicensingMetrics) IncActivation(outcome string) {
	m.Activations.WithLabelValues(outcome).Inc()
}
