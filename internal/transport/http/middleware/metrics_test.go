package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newMetricsRouter(t *testing.T) (*gin.Engine, *HTTPMetrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	metrics := NewHTTPMetrics(prometheus.NewRegistry())
	router := gin.New()
	router.Use(metrics.Handler())
	return router, metrics
}

func TestHTTPMetricsLabelsByRouteTemplate(t *testing.T) {
	router, metrics := newMetricsRouter(t)
	router.GET("/api/v1/users/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	for _, id := range []string{"a", "b", "c"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/"+id, nil))
	}

	if got := testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "/api/v1/users/:id", "200")); got != 3 {
		t.Fatalf("expected 3 requests on the route template, got %v", got)
	}
	if got := testutil.CollectAndCount(metrics.ResponseSize); got != 1 {
		t.Fatalf("expected one response size series, got %d", got)
	}
	if got := testutil.ToFloat64(metrics.InFlight); got != 0 {
		t.Fatalf("expected in-flight gauge back at 0, got %v", got)
	}
}

func TestHTTPMetricsUnmatchedRoutesShareLabel(t *testing.T) {
	router, metrics := newMetricsRouter(t)

	for _, path := range []string{"/a", "/b"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, unmatchedRoute, "404")); got != 2 {
		t.Fatalf("expected 2 unmatched requests, got %v", got)
	}
}

func TestNewHTTPMetricsPanicsOnDoubleRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewHTTPMetrics(registry)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	NewHTTPMetrics(registry)
}

func TestNilHTTPMetricsPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use((*HTTPMetrics)(nil).Handler())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}
