package transportgrpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/shubra2641/liceinc/internal/infra/security"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func startServer(t *testing.T, deps ServerDependencies) (*Server, *grpc.ClientConn) {
	t.Helper()
	listener := bufconn.Listen(1 << 20)
	srv := NewServer(deps)
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return listener.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return srv, conn
}

func TestHealthCheckIsPublic(t *testing.T) {
	manager := security.NewAdminTokenManager(testSecret, "liceinc")
	srv, conn := startServer(t, ServerDependencies{AdminTokens: manager, Logger: zaptest.NewLogger(t)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.checkReadiness(ctx, map[string]ReadinessCheck{"database": func(context.Context) error { return nil }})

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: LicenseServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}

	srv.checkReadiness(ctx, map[string]ReadinessCheck{"redis": func(context.Context) error { return errors.New("down") }})
	resp, err = healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: LicenseServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING after a failed readiness check, got %v", resp.GetStatus())
	}
}

func TestReflectionRequiresAdminToken(t *testing.T) {
	manager := security.NewAdminTokenManager(testSecret, "liceinc")
	_, conn := startServer(t, ServerDependencies{AdminTokens: manager, Logger: zaptest.NewLogger(t)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := reflectionpb.NewServerReflectionClient(conn)
	stream, err := client.ServerReflectionInfo(ctx)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	_ = stream.Send(&reflectionpb.ServerReflectionRequest{MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{}})
	if _, err := stream.Recv(); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated reflection, got %v", err)
	}

	token, err := manager.Issue("ops", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	authed := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	stream, err = client.ServerReflectionInfo(authed)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	if err := stream.Send(&reflectionpb.ServerReflectionRequest{MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{}}); err != nil {
		t.Fatalf("send: %v", err)
	}
	resp, err := stream.Recv()
	if err != nil {
		t.Fatalf("expected reflection with token to succeed, got %v", err)
	}
	if len(resp.GetListServicesResponse().GetService()) == 0 {
		t.Fatalf("expected registered services")
	}
}
