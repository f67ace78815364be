package transportgrpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/shubra2641/liceinc/internal/transport/grpc/interceptors"
)

// LicenseServiceName is the health service name reported for the license engine.
const LicenseServiceName = "liceinc.v1.LicenseService"

// ReadinessCheck checks one dependency.
type ReadinessCheck func(ctx context.Context) error

// ServerDependencies encapsulates what the gRPC server layer needs.
type ServerDependencies struct {
	AdminTokens grpcinterceptors.AdminTokenValidator
	Metrics     *grpcinterceptors.GRPCMetrics
	Tracing     grpcinterceptors.TracingOptions
	Logger      *zap.Logger
}

// Server bundles the gRPC server with its health reporter.
type Server struct {
	*grpc.Server
	Health *health.Server
	logger *zap.Logger
}

// NewServer builds the health and reflection surface. Reflection requires an operator token when one is configured.
func NewServer(deps ServerDependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	authInterceptor := grpcinterceptors.NewAuthInterceptor(deps.AdminTokens, grpcinterceptors.AuthOptions{
		Logger:       logger,
		AllowMethods: grpcinterceptors.HealthMethods(),
	})

	server := grpc.NewServer(
		grpc.StatsHandler(grpcinterceptors.NewTracingHandler(deps.Tracing)),
		grpc.ChainUnaryInterceptor(deps.Metrics.UnaryServerInterceptor(), authInterceptor.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(deps.Metrics.StreamServerInterceptor(), authInterceptor.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(LicenseServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	reflection.Register(server)

	return &Server{Server: server, Health: healthServer, logger: logger}
}

// WatchReadiness runs the checks on every tick and mirrors the result into the health service until ctx ends.
func (s *Server) WatchReadiness(ctx context.Context, interval time.Duration, checks map[string]ReadinessCheck) {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	s.checkReadiness(ctx, checks)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Health.Shutdown()
			return
		case <-ticker.C:
			s.checkReadiness(ctx, checks)
		}
	}
}

func (s *Server) checkReadiness(ctx context.Context, checks map[string]ReadinessCheck) {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range checks {
		if err := check(checkCtx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.Health.SetServingStatus(LicenseServiceName, status)
}
