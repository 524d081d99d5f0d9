package interceptors

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/wasipo/harbor-sub000/internal/infra/telemetry"
)

const (
	rpcUnary  = "unary"
	rpcStream = "server_stream"
)

// GRPCMetrics counts handled RPCs by service, method, type and status code.
type GRPCMetrics struct {
	handled  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   *prometheus.GaugeVec
}

// NewGRPCMetrics registers the collectors on reg. It panics if they are already registered there.
func NewGRPCMetrics(reg prometheus.Registerer) *GRPCMetrics {
	factory := promauto.With(reg)
	return &GRPCMetrics{
		handled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: telemetry.Namespace,
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "RPCs completed by service, method, type and status code.",
		}, []string{"service", "method", "type", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: telemetry.Namespace,
			Subsystem: "grpc",
			Name:      "request_duration_seconds",
			Help:      "RPC handling time. Streams are measured until the handler returns.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method", "type"}),
		active: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: telemetry.Namespace,
			Subsystem: "grpc",
			Name:      "in_flight_requests",
			Help:      "RPCs currently being handled by type.",
		}, []string{"type"}),
	}
}

// observe wraps one RPC; the returned func records its outcome.
func (m *GRPCMetrics) observe(fullMethod, rpcType string) func(error) {
	service, method := splitFullMethod(fullMethod)
	active := m.active.WithLabelValues(rpcType)
	active.Inc()
	start := time.Now()

	return func(err error) {
		active.Dec()
		m.handled.WithLabelValues(service, method, rpcType, status.Code(err).String()).Inc()
		m.duration.WithLabelValues(service, method, rpcType).Observe(time.Since(start).Seconds())
	}
}

func (m *GRPCMetrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if m == nil {
			return handler(ctx, req)
		}
		done := m.observe(info.FullMethod, rpcUnary)
		resp, err := handler(ctx, req)
		done(err)
		return resp, err
	}
}

// StreamServerInterceptor covers server streams such as Health/Watch.
func (m *GRPCMetrics) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if m == nil {
			return handler(srv, ss)
		}
		done := m.observe(info.FullMethod, rpcStream)
		err := handler(srv, ss)
		done(err)
		return err
	}
}

// splitFullMethod turns "/pkg.Service/Method" into its service and method parts.
func splitFullMethod(full string) (string, string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(full, "/"), "/")
	if !ok || service == "" || method == "" {
		return "unknown", "unknown"
	}
	return service, method
}
