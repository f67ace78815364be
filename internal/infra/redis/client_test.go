package redis

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"github.com/shubra2641/liceinc/internal/infra/config"
)

func TestNewOptions(t *testing.T) {
	opts := newOptions(config.RedisSettings{Host: "cache.internal", Port: 6380, PoolSize: 40, TLSEnabled: true})

	if opts.Addr != "cache.internal:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.PoolSize != 40 || opts.MinIdleConns != 4 {
		t.Fatalf("unexpected pool sizing %d/%d", opts.PoolSize, opts.MinIdleConns)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.ServerName != "cache.internal" {
		t.Fatalf("expected TLS config bound to the host")
	}

	defaults := newOptions(config.RedisSettings{Host: "localhost", Port: 6379})
	if defaults.PoolSize != defaultPoolSize || defaults.TLSConfig != nil {
		t.Fatalf("unexpected defaults %+v", defaults)
	}
}

func TestNewClientPingsAndReportsHealth(t *testing.T) {
	srv := miniredis.RunT(t)
	port, err := strconv.Atoi(srv.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	client, err := NewClient(config.RedisSettings{Host: srv.Host(), Port: port}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected healthy redis, got %v", err)
	}

	srv.Close()
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatalf("expected health check to fail once redis is gone")
	}
}
