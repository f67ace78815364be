package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type fakeRateLimitStore struct {
	trimErr   error
	count     int
	countErr  error
	oldest    time.Time
	hasOldest bool
	oldestErr error
	recordErr error

	trimmedKeys []string
	countedKeys []string
	recordedKey string
	recordCalls int
}

func (f *fakeRateLimitStore) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	f.trimmedKeys = append(f.trimmedKeys, identifier)
	return f.trimErr
}

func (f *fakeRateLimitStore) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	f.countedKeys = append(f.countedKeys, identifier)
	return f.count, f.countErr
}

func (f *fakeRateLimitStore) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	f.recordedKey = identifier
	f.recordCalls++
	return f.recordErr
}

func (f *fakeRateLimitStore) OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	return f.oldest, f.hasOldest, f.oldestErr
}

func TestRateLimiterSingleRule(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	oldest := now.Add(-30 * time.Second)
	resetAt := strconv.FormatInt(oldest.Add(time.Minute).Unix(), 10)

	cases := []struct {
		name        string
		store       *fakeRateLimitStore
		wantStatus  int
		wantRecords int
		wantHeaders map[string]string
	}{
		{
			name:        "under budget records and advertises",
			store:       &fakeRateLimitStore{count: 2, oldest: oldest, hasOldest: true},
			wantStatus:  http.StatusOK,
			wantRecords: 1,
			wantHeaders: map[string]string{"X-RateLimit-Limit": "5", "X-RateLimit-Remaining": "2", "X-RateLimit-Reset": resetAt, "Retry-After": ""},
		},
		{
			name:        "exhausted window rejects without recording",
			store:       &fakeRateLimitStore{count: 5, oldest: oldest, hasOldest: true},
			wantStatus:  http.StatusTooManyRequests,
			wantHeaders: map[string]string{"X-RateLimit-Remaining": "0", "Retry-After": "30"},
		},
		{
			name:        "store outage fails open",
			store:       &fakeRateLimitStore{trimErr: errors.New("redis down")},
			wantStatus:  http.StatusOK,
			wantHeaders: map[string]string{"X-RateLimit-Limit": ""},
		},
		{
			name:        "empty window resets one window from now",
			store:       &fakeRateLimitStore{},
			wantStatus:  http.StatusOK,
			wantRecords: 1,
			wantHeaders: map[string]string{"X-RateLimit-Remaining": "4", "X-RateLimit-Reset": strconv.FormatInt(now.Add(time.Minute).Unix(), 10)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			limiter := NewRateLimiter(tc.store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

			router := gin.New()
			router.Use(limiter.RateLimit(RateLimitRule{
				Name:       "license_verify_ip",
				Limit:      5,
				Window:     time.Minute,
				Identifier: func(*gin.Context) (string, bool) { return "192.0.2.1", true },
			}))
			router.POST("/licenses/verify", func(c *gin.Context) { c.Status(http.StatusOK) })

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/licenses/verify", nil))

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			if tc.store.recordCalls != tc.wantRecords {
				t.Fatalf("expected %d recorded attempts, got %d", tc.wantRecords, tc.store.recordCalls)
			}
			for header, want := range tc.wantHeaders {
				if got := rr.Header().Get(header); got != want {
					t.Fatalf("header %s: expected %q, got %q", header, want, got)
				}
			}
		})
	}
}

func TestRateLimiterRejectionEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	store := &fakeRateLimitStore{count: 3, oldest: now.Add(-50 * time.Second), hasOldest: true}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

	router := gin.New()
	router.Use(EnrichContext(), limiter.RateLimit(RateLimitRule{
		Name: "license_key", Limit: 3, Window: time.Minute, Identifier: ParamIdentifier("key"),
	}))
	router.POST("/licenses/:key/domains", func(c *gin.Context) { c.Status(http.StatusCreated) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/licenses/LIC-9/domains", nil))

	var body RateLimitedEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "error" || body.Code != codeRateLimited || body.RetryAfter != 10 {
		t.Fatalf("unexpected envelope %+v", body)
	}
	if body.TraceID == "" || body.TraceID != rr.Header().Get(TraceIDHeader) {
		t.Fatalf("expected envelope trace id to match header, got %q", body.TraceID)
	}
}

func TestRateLimiterScopesKeysByRuleAndIdentifier(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &fakeRateLimitStore{}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t))

	router := gin.New()
	router.Use(limiter.RateLimit(RateLimitRule{
		Name:       "license_verify_ip",
		Limit:      5,
		Window:     time.Minute,
		Identifier: ClientIPIdentifier(),
	}))
	router.POST("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "198.51.100.7:4321"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if store.recordedKey != "license_verify_ip:198.51.100.7" {
		t.Fatalf("unexpected storage key %q", store.recordedKey)
	}
}

func TestRateLimiterAdvertisesTightestRuleAndSkipsMissingParam(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	store := &fakeRateLimitStore{count: 1}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

	router := gin.New()
	router.Use(limiter.RateLimit(
		RateLimitRule{Name: "license_api_ip", Limit: 100, Window: time.Minute, Identifier: ClientIPIdentifier()},
		RateLimitRule{Name: "license_key", Limit: 3, Window: time.Minute, Identifier: ParamIdentifier("key")},
	))
	router.POST("/licenses/:key/domains", func(c *gin.Context) { c.Status(http.StatusCreated) })
	router.POST("/licenses/verify", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/licenses/LIC-1/domains", nil)
	req.RemoteAddr = "198.51.100.7:4321"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "3" {
		t.Fatalf("expected the per-key budget to be advertised, got limit %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "1" {
		t.Fatalf("expected remaining 1, got %q", got)
	}
	if store.recordCalls != 2 || store.recordedKey != "license_key:LIC-1" {
		t.Fatalf("expected both rules recorded, got %d calls, last key %q", store.recordCalls, store.recordedKey)
	}

	store.recordCalls = 0
	req = httptest.NewRequest(http.MethodPost, "/licenses/verify", nil)
	req.RemoteAddr = "198.51.100.7:4321"
	router.ServeHTTP(httptest.NewRecorder(), req)

	if store.recordCalls != 1 || store.recordedKey != "license_api_ip:198.51.100.7" {
		t.Fatalf("expected only the ip rule on keyless routes, got %d calls, last key %q", store.recordCalls, store.recordedKey)
	}
}
