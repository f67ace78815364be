package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) *HTTPMetrics {
	t.Helper()
	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("new http metrics: %v", err)
	}
	return metrics
}

func TestHTTPMetricsCountsErrorEnvelopesByCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := newTestMetrics(t)

	router := gin.New()
	router.Use(metrics.Handler())
	router.GET("/api/v1/licenses/:key", func(c *gin.Context) {
		SetErrorCode(c, "LICENSE_NOT_FOUND")
		c.JSON(http.StatusNotFound, ErrorEnvelope{Status: "error", Code: "LICENSE_NOT_FOUND"})
	})
	router.POST("/api/v1/licenses/verify", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/licenses/LIC-AAAA", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/licenses/LIC-BBBB", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/licenses/verify", nil),
	} {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(metrics.Responses.WithLabelValues(http.MethodGet, "/api/v1/licenses/:key", "4xx")); got != 2 {
		t.Fatalf("expected two 4xx responses on the key route, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Responses.WithLabelValues(http.MethodPost, "/api/v1/licenses/verify", "2xx")); got != 1 {
		t.Fatalf("expected one 2xx verify response, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Failures.WithLabelValues("/api/v1/licenses/:key", "LICENSE_NOT_FOUND")); got != 2 {
		t.Fatalf("expected two LICENSE_NOT_FOUND envelopes, got %v", got)
	}
	if n := testutil.CollectAndCount(metrics.Failures); n != 1 {
		t.Fatalf("successful responses must not create failure series, got %d series", n)
	}
	if n := testutil.CollectAndCount(metrics.Latency); n != 2 {
		t.Fatalf("expected one latency series per route, got %d", n)
	}
}

func TestHTTPMetricsKeepsRawKeysOutOfLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := newTestMetrics(t)

	router := gin.New()
	router.Use(metrics.Handler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/licenses/ABCDEF0123456789ABCDEF0123456789/unknown", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(metrics.Responses.WithLabelValues(http.MethodGet, unmatchedRoute, "4xx")); got != 1 {
		t.Fatalf("expected unmatched counter 1, got %v", got)
	}
}

func TestHTTPMetricsRecordsRateLimitRejections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := newTestMetrics(t)

	router := gin.New()
	router.Use(metrics.Handler())
	router.GET("/limited", func(c *gin.Context) {
		abortWithEnvelope(c, http.StatusTooManyRequests, codeRateLimited, "slow down")
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/limited", nil))

	if got := testutil.ToFloat64(metrics.Failures.WithLabelValues("/limited", codeRateLimited)); got != 1 {
		t.Fatalf("expected rate limit rejection counted, got %v", got)
	}
}

func TestHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	second, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second registration failed: %v", err)
	}
	if first.Responses != second.Responses || first.Failures != second.Failures {
		t.Fatalf("expected collectors to be shared across registrations")
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{200: "2xx", 204: "2xx", 409: "4xx", 503: "5xx", 0: "other", 600: "other"}
	for status, want := range cases {
		if got := statusClass(status); got != want {
			t.Fatalf("statusClass(%d) = %q, want %q", status, got, want)
		}
	}
}

func TestHTTPMetricsHandlerNoopWhenNil(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use((*HTTPMetrics)(nil).Handler())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}
