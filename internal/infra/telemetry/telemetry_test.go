package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLicensingMetricsRecordsOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewLicensingMetrics(LicensingMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("NewLicensingMetrics returned error: %v", err)
	}

	metrics.ObserveVerification("local", "valid", 20*time.Millisecond)
	metrics.ObserveVerification("local", "valid", 10*time.Millisecond)
	metrics.IncRemoteCall("timeout")
	metrics.IncActivation("limit_reached")

	if got := testutil.ToFloat64(metrics.Verifications.WithLabelValues("local", "valid")); got != 2 {
		t.Fatalf("expected 2 verifications, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.RemoteCalls.WithLabelValues("timeout")); got != 1 {
		t.Fatalf("expected 1 remote timeout, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Activations.WithLabelValues("limit_reached")); got != 1 {
		t.Fatalf("expected 1 limited activation, got %f", got)
	}
	if got := testutil.CollectAndCount(metrics.Latency); got != 1 {
		t.Fatalf("expected 1 latency series, got %d", got)
	}
}

func TestLicensingMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewLicensingMetrics(LicensingMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	second, err := NewLicensingMetrics(LicensingMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second registration failed: %v", err)
	}
	if first.Verifications != second.Verifications {
		t.Fatalf("expected collectors to be shared")
	}
}
