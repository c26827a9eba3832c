package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"optpricer/internal/config"
	"optpricer/internal/infrastructure"
	"optpricer/pkg/contracts/domain"
)

const (
	TracerName = "optpricer.operation"
)

// OperationTracer wraps spans and pipeline metrics for one Manager
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewOperationTracer creates a tracer. Both arguments may be nil, in which case
// spans are no-ops and nothing is recorded.
func NewOperationTracer(providers *infrastructure.OTelProviders, metrics *infrastructure.PipelineMetrics) *OperationTracer {
	var tracer trace.Tracer = tracenoop.NewTracerProvider().Tracer(TracerName)
	if providers != nil && providers.Tracer != nil {
		tracer = providers.Tracer
	}
	return &OperationTracer{tracer: tracer, metrics: metrics}
}

// TraceOperationExecution creates a span for the entire run
func (pt *OperationTracer) TraceOperationExecution(ctx context.Context, operationID string, asOf time.Time) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "operation.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("operation.as_of", asOf.Format(config.DateLayout)),
		),
	)
}

// TraceStageExecution creates a span for one Step
func (pt *OperationTracer) TraceStageExecution(ctx context.Context, operationID, stageID string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "operation.step."+stageID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", stageID),
		),
	)
}

// RecordStageCompletion ends a Step span and records its duration and output rows
func (pt *OperationTracer) RecordStageCompletion(ctx context.Context, span trace.Span, stageID string, duration time.Duration, status string, rows int) {
	span.SetAttributes(
		attribute.String("step.status", status),
		attribute.Float64("step.duration_seconds", duration.Seconds()),
		attribute.Int("step.rows", rows),
	)
	if status == infrastructure.StatusSuccess {
		span.SetStatus(codes.Ok, "")
		pt.metrics.RecordRows(ctx, stageID, rows)
	}
	pt.metrics.RecordStep(ctx, stageID, status, duration)
	span.End()
}

// RecordStageError marks the Step span as failed
func (pt *OperationTracer) RecordStageError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordStageSkipped records a Step that never ran
func (pt *OperationTracer) RecordStageSkipped(ctx context.Context, stageID string) {
	pt.metrics.RecordStep(ctx, stageID, infrastructure.StatusSkipped, 0)
}

// RecordOperationCompletion ends the run span with the summary counts
func (pt *OperationTracer) RecordOperationCompletion(ctx context.Context, span trace.Span, summary domain.RunSummary, status string, err error) {
	span.SetAttributes(
		attribute.String("operation.status", status),
		attribute.Int("operation.initial_rows", summary.InitialRows),
		attribute.Int("operation.payloads", summary.Payloads),
		attribute.Int("operation.price_failures", summary.PriceFailures),
		attribute.Int("operation.merged_rows", summary.MergedRows),
	)
	if err != nil {
		infrastructure.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	pt.metrics.RecordRun(ctx, status)
	span.End()
}
