package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric status labels
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// PipelineMetrics holds the instruments recorded by a pipeline run.
// A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	PricingRequestsTotal   metric.Int64Counter
	PricingRequestDuration metric.Float64Histogram
	PipelineRowsTotal      metric.Int64Counter
	PipelineStepDuration   metric.Float64Histogram
	PipelineRunsTotal      metric.Int64Counter
	PipelineDuplicateKeys  metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments on meter
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	requestsTotal, err := meter.Int64Counter(
		"pricing_requests_total",
		metric.WithDescription("Total number of pricing service requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"pricing_request_duration_seconds",
		metric.WithDescription("Pricing service request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	rowsTotal, err := meter.Int64Counter(
		"pipeline_rows_total",
		metric.WithDescription("Rows leaving each pipeline stage"),
	)
	if err != nil {
		return nil, err
	}

	stepDuration, err := meter.Float64Histogram(
		"pipeline_step_duration_seconds",
		metric.WithDescription("Pipeline step duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runsTotal, err := meter.Int64Counter(
		"pipeline_runs_total",
		metric.WithDescription("Total number of pipeline runs"),
	)
	if err != nil {
		return nil, err
	}

	duplicateKeys, err := meter.Int64Counter(
		"pipeline_duplicate_join_keys_total",
		metric.WithDescription("Exposures seen more than once while merging results"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		PricingRequestsTotal:   requestsTotal,
		PricingRequestDuration: requestDuration,
		PipelineRowsTotal:      rowsTotal,
		PipelineStepDuration:   stepDuration,
		PipelineRunsTotal:      runsTotal,
		PipelineDuplicateKeys:  duplicateKeys,
	}, nil
}

// RecordPricingRequest records one call to a pricing endpoint
func (m *PipelineMetrics) RecordPricingRequest(ctx context.Context, endpoint string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", statusLabel(success)),
	)
	m.PricingRequestsTotal.Add(ctx, 1, attrs)
	m.PricingRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordRows records how many rows a stage produced
func (m *PipelineMetrics) RecordRows(ctx context.Context, stage string, rows int) {
	if m == nil {
		return
	}
	m.PipelineRowsTotal.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordStep records a step's duration and outcome
func (m *PipelineMetrics) RecordStep(ctx context.Context, step, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.PipelineStepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("status", status),
	))
}

// RecordRun records a finished run
func (m *PipelineMetrics) RecordRun(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.PipelineRunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordDuplicateKeys records exposures that matched more than one row or result
func (m *PipelineMetrics) RecordDuplicateKeys(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.PipelineDuplicateKeys.Add(ctx, int64(n))
}

func statusLabel(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusFailure
}
