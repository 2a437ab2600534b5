package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ralph/pipeline")

// StartSpan opens a span for a pipeline stage. With no global
// TracerProvider configured (telemetry disabled), this resolves to the
// OTel no-op tracer, so call sites are unconditional and free when off.
func StartSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return tracer.Start(ctx, stage)
}
