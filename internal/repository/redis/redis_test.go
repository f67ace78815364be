package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/repository"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestVerificationCache_SetGetInvalidate(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewVerificationCache(client, "")
	ctx := context.Background()

	expires := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	license := domain.License{
		ID:               9,
		PurchaseCode:     "ABCD1234EFGH",
		LicenseKey:       "LK0001",
		ProductID:        7,
		Type:             domain.LicenseTypeMulti,
		Status:           domain.LicenseStatusActive,
		MaxDomains:       5,
		LicenseExpiresAt: &expires,
	}

	if err := cache.SetLicense(ctx, "hash-1", license, time.Minute); err != nil {
		t.Fatalf("SetLicense returned error: %v", err)
	}
	if ttl := server.TTL("liceinc:license:hash-1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected ttl within (0, 1m], got %v", ttl)
	}

	cached, err := cache.GetLicense(ctx, "hash-1")
	if err != nil {
		t.Fatalf("GetLicense returned error: %v", err)
	}
	if cached.ID != 9 || cached.Type != domain.LicenseTypeMulti || cached.LicenseExpiresAt == nil || !cached.LicenseExpiresAt.Equal(expires) {
		t.Fatalf("unexpected snapshot %+v", cached)
	}

	if err := cache.Invalidate(ctx, "hash-1", "", "hash-2"); err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}
	if _, err := cache.GetLicense(ctx, "hash-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after invalidation, got %v", err)
	}
}

func TestVerificationCache_CorruptSnapshotIsMiss(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewVerificationCache(client, "lic")

	if err := server.Set("lic:broken", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := cache.GetLicense(context.Background(), "broken"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if server.Exists("lic:broken") {
		t.Fatalf("expected corrupt snapshot to be evicted")
	}
}

func TestAttemptCounter_IncrementExpires(t *testing.T) {
	client, server := newTestRedis(t)
	counter := NewAttemptCounter(client, "")
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		count, err := counter.Increment(ctx, "verify:1.2.3.4", time.Hour)
		if err != nil {
			t.Fatalf("Increment returned error: %v", err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}

	server.FastForward(time.Hour + time.Second)

	count, err := counter.Increment(ctx, "verify:1.2.3.4", time.Hour)
	if err != nil || count != 1 {
		t.Fatalf("expected counter to restart after window, got %d (%v)", count, err)
	}
}

func TestAttemptCounter_RestoresMissingExpiry(t *testing.T) {
	client, server := newTestRedis(t)
	counter := NewAttemptCounter(client, "")
	ctx := context.Background()

	// A counter left behind without a TTL, e.g. after a crash between INCR and EXPIRE.
	if err := server.Set("liceinc:attempts:verify:1.2.3.4", "30"); err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	count, err := counter.Increment(ctx, "verify:1.2.3.4", time.Hour)
	if err != nil || count != 31 {
		t.Fatalf("expected count 31, got %d (%v)", count, err)
	}
	if ttl := server.TTL("liceinc:attempts:verify:1.2.3.4"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected the window to be restored, got ttl %s", ttl)
	}

	server.FastForward(time.Hour + time.Second)
	if server.Exists("liceinc:attempts:verify:1.2.3.4") {
		t.Fatalf("expected the counter to lapse after the window")
	}
}

func TestSlidingWindowStore_WindowAccounting(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewSlidingWindowStore(client, SlidingWindowConfig{TTL: time.Minute})
	ctx := context.Background()

	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{-90 * time.Second, -40 * time.Second, -10 * time.Second} {
		if err := store.RecordAttempt(ctx, "verify:1.2.3.4", now.Add(offset)); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	count, err := store.CountAttempts(ctx, "verify:1.2.3.4", time.Minute, now)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 attempts in window, got %d (%v)", count, err)
	}

	if err := store.TrimWindow(ctx, "verify:1.2.3.4", time.Minute, now); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}

	oldest, ok, err := store.OldestAttempt(ctx, "verify:1.2.3.4", time.Minute, now)
	if err != nil || !ok {
		t.Fatalf("expected an oldest attempt, got %v %v", ok, err)
	}
	if !oldest.Equal(now.Add(-40 * time.Second)) {
		t.Fatalf("expected oldest attempt 40s ago, got %v", oldest)
	}

	if _, err := store.CountAttempts(ctx, "verify:1.2.3.4", 0, now); err == nil {
		t.Fatalf("expected error for non-positive window")
	}
}
