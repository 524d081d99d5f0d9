package interceptors

import (
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"
)

// Health checks and grpcurl discovery would otherwise dominate the trace backend.
var untracedServices = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.",
}

// TracingOptions customises the tracing stats handler. Nil fields fall back to the otel globals.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
}

// TracingServerOption installs the otelgrpc stats handler, skipping health and reflection calls.
func TracingServerOption(opts TracingOptions) grpc.ServerOption {
	handlerOpts := []otelgrpc.Option{otelgrpc.WithFilter(traced)}
	if opts.TracerProvider != nil {
		handlerOpts = append(handlerOpts, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		handlerOpts = append(handlerOpts, otelgrpc.WithPropagators(opts.Propagators))
	}
	return grpc.StatsHandler(otelgrpc.NewServerHandler(handlerOpts...))
}

func traced(info *stats.RPCTagInfo) bool {
	for _, prefix := range untracedServices {
		if strings.HasPrefix(info.FullMethodName, prefix) {
			return false
		}
	}
	return true
}
