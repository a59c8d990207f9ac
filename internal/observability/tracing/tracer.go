package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName names the tracer used by the HTTP layer.
const ServiceName = "pablos-ai"

// tracer is the global tracer instance for the HTTP layer.
var tracer = otel.Tracer(ServiceName)

// GetTracer returns the global tracer for creating spans.
//
//	ctx, span := tracing.GetTracer().Start(ctx, "operation-name")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}

// Setup installs a global tracer provider and W3C trace-context propagation.
// With sampling disabled spans are still created (so trace ids reach logs and
// the X-Trace-Id header) but never recorded. The returned function flushes and
// stops the provider.
func Setup(sample bool, opts ...sdktrace.TracerProviderOption) func(context.Context) error {
	sampler := sdktrace.NeverSample()
	if sample {
		sampler = sdktrace.AlwaysSample()
	}
	tp := sdktrace.NewTracerProvider(append([]sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}, opts...)...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tracer = tp.Tracer(ServiceName)

	return tp.Shutdown
}
