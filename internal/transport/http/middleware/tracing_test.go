package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestTracingRecordsServerSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	var traceID string
	router := gin.New()
	router.Use(Tracing(provider), Correlation())
	router.GET("/api/v1/roles/:id", func(c *gin.Context) {
		traceID = GetTraceID(c)
		c.Status(http.StatusInternalServerError)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/roles/abc", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "GET /api/v1/roles/:id" {
		t.Fatalf("unexpected span name %q", span.Name())
	}
	if span.SpanKind() != trace.SpanKindServer {
		t.Fatalf("expected server span, got %s", span.SpanKind())
	}
	if span.Status().Code.String() != "Error" {
		t.Fatalf("expected error status for 500, got %s", span.Status().Code)
	}
	if traceID != span.SpanContext().TraceID().String() {
		t.Fatalf("expected trace id %s to follow the span, got %s", span.SpanContext().TraceID(), traceID)
	}
}

func TestCorrelationKeepsIncomingTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Correlation())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetTraceID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceIDHeader, "trace-123")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Body.String() != "trace-123" || rr.Header().Get(TraceIDHeader) != "trace-123" {
		t.Fatalf("expected incoming trace id to be kept, got body %q header %q", rr.Body.String(), rr.Header().Get(TraceIDHeader))
	}
}

func TestCorrelationPrefersActiveSpanOverHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(tracetest.NewSpanRecorder()))

	router := gin.New()
	router.Use(Tracing(provider), Correlation())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetTraceID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceIDHeader, "caller-supplied")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Body.String(); got == "caller-supplied" || len(got) != 32 {
		t.Fatalf("expected span trace id, got %q", got)
	}
}
