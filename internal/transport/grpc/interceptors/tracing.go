package interceptors

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/stats"
)

// TracingOptions customises the server tracing handler.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	Additional     []otelgrpc.Option
}

// NewTracingHandler builds an OpenTelemetry stats handler for gRPC server traffic.
// Health checks are excluded so they do not flood the trace backend.
func NewTracingHandler(opts TracingOptions) stats.Handler {
	options := make([]otelgrpc.Option, 0, len(opts.Additional)+3)
	if opts.TracerProvider != nil {
		options = append(options, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgrpc.WithPropagators(opts.Propagators))
	}
	options = append(options, otelgrpc.WithFilter(func(info *stats.RPCTagInfo) bool {
		return info.FullMethodName != healthCheckMethod && info.FullMethodName != healthWatchMethod
	}))
	options = append(options, opts.Additional...)

	return otelgrpc.NewServerHandler(options...)
}

const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	healthWatchMethod = "/grpc.health.v1.Health/Watch"
)

// HealthMethods lists the health service methods that never require authentication.
func HealthMethods() []string {
	return []string{healthCheckMethod, healthWatchMethod}
}
