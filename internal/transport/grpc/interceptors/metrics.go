package interceptors

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// GRPCMetricsOptions controls construction of gRPC metrics collectors.
type GRPCMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// GRPCMetrics counts calls on the operational gRPC surface. Health Watch streams stay open
// for as long as the client watches, so open streams are tracked separately from calls.
type GRPCMetrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
	streams *prometheus.GaugeVec
}

// NewGRPCMetrics constructs collectors and registers them with the supplied registerer.
func NewGRPCMetrics(opts GRPCMetricsOptions) (*GRPCMetrics, error) {
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
		buckets = []float64{0.001, 0.005, 0.025, 0.1, 0.5, 2.5}
	}

	calls, err := registerCollector(reg, "calls", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "grpc",
		Name:      "calls_total",
		Help:      "Completed gRPC calls by method and status code.",
	}, []string{"method", "code"}))
	if err != nil {
		return nil, err
	}

	latency, err := registerCollector(reg, "latency", prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "grpc",
		Name:      "unary_seconds",
		Help:      "Unary gRPC handling time by method.",
		Buckets:   buckets,
	}, []string{"method"}))
	if err != nil {
		return nil, err
	}

	streams, err := registerCollector(reg, "streams", prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "grpc",
		Name:      "open_streams",
		Help:      "Server streams currently open, by method.",
	}, []string{"method"}))
	if err != nil {
		return nil, err
	}

	return &GRPCMetrics{calls: calls, latency: latency, streams: streams}, nil
}

func registerCollector[C prometheus.Collector](reg prometheus.Registerer, name string, collector C) (C, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}
	already, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		return collector, fmt.Errorf("register gRPC %s collector: %w", name, err)
	}
	existing, ok := already.ExistingCollector.(C)
	if !ok {
		return collector, fmt.Errorf("existing gRPC %s collector has wrong type %T", name, already.ExistingCollector)
	}
	return existing, nil
}

// UnaryServerInterceptor returns a gRPC unary interceptor that records metrics.
func (m *GRPCMetrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if m == nil {
			return handler(ctx, req)
		}
		method := methodLabel(info.FullMethod)
		start := time.Now()
		resp, err := handler(ctx, req)
		m.latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
		m.calls.WithLabelValues(method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor that tracks open streams.
func (m *GRPCMetrics) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if m == nil {
			return handler(srv, ss)
		}
		method := methodLabel(info.FullMethod)
		open := m.streams.WithLabelValues(method)
		open.Inc()
		err := handler(srv, ss)
		open.Dec()
		m.calls.WithLabelValues(method, status.Code(err).String()).Inc()
		return err
	}
}

// methodLabel shortens "/grpc.health.v1.Health/Check" to "Health/Check".
func methodLabel(fullMethod string) string {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok || service == "" || method == "" || strings.Contains(method, "/") {
		return "unknown"
	}
	if i := strings.LastIndex(service, "."); i >= 0 {
		service = service[i+1:]
	}
	return path.Join(service, method)
}
