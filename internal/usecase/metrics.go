package usecase

import (
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/shubra2641/liceinc/internal/usecase")

// LicensingMetrics captures telemetry hooks for verification and activation outcomes.
type LicensingMetrics interface {
	ObserveVerification(source, outcome string, duration time.Duration)
	IncRemoteCall(result string)
	IncActivation(outcome string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveVerification(string, string, time.Duration) {}
func (noopMetrics) IncRemoteCall(string) {}
func (noopMetrics) IncActivation(string) {}
