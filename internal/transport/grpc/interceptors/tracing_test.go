package interceptors

import (
	"context"
	"strings"
	"testing"

	"google.golang.org/grpc"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingHandlerUsesSuppliedProvider(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	if NewTracingHandler(TracingOptions{TracerProvider: tp}) == nil {
		t.Fatalf("expected a stats handler")
	}
	if len(recorder.Ended()) != 0 {
		t.Fatalf("building the handler must not start spans")
	}
}

func TestHealthMethodsSkipAuthAndTracing(t *testing.T) {
	methods := HealthMethods()
	if len(methods) != 2 {
		t.Fatalf("expected Check and Watch, got %v", methods)
	}
	for _, method := range methods {
		if !strings.HasPrefix(method, "/grpc.health.v1.Health/") {
			t.Fatalf("unexpected health method %q", method)
		}
	}
}

type mockServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (m *mockServerStream) Context() context.Context {
	return m.ctx
}
