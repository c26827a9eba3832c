package operations

import (
	"context"
	"log/slog"
	"time"

	"optpricer/internal/config"
)

// logOperationStart logs the start of a run
func (m *Manager) logOperationStart(ctx context.Context, operationID string, asOf time.Time, steps int) {
	m.logger.InfoContext(ctx, "pipeline run started",
		slog.String("operation_id", operationID),
		slog.String("as_of_date", asOf.Format(config.DateLayout)),
		slog.Int("steps", steps))
}

// logOperationComplete logs the run summary
func (m *Manager) logOperationComplete(ctx context.Context, state *OperationState) {
	s := state.Summary
	attrs := []any{
		slog.String("operation_id", state.ID),
		slog.String("status", string(state.Status)),
		slog.Duration("duration", state.Duration()),
		slog.Int("initial_rows", s.InitialRows),
		slog.Int("normalized_rows", s.NormalizedRows),
		slog.Int("aligned_rows", s.AlignedRows),
		slog.Int("ivol_requests", s.IVolRequests),
		slog.Int("ivol_failures", s.IVolFailures),
		slog.Int("payloads", s.Payloads),
		slog.Int("price_successes", s.PriceSuccesses),
		slog.Int("price_failures", s.PriceFailures),
		slog.Int("merged_rows", s.MergedRows),
		slog.Int("duplicate_keys", s.DuplicateKeys),
		slog.String("output_file", s.OutputFile),
	}
	if s.StoppedAt != "" {
		attrs = append(attrs,
			slog.String("stopped_at", s.StoppedAt),
			slog.String("stopped_because", s.StoppedBecause))
	}
	m.logger.InfoContext(ctx, "pipeline run summary", attrs...)
}

// logOperationError logs a run error
func (m *Manager) logOperationError(ctx context.Context, operationID string, err error) {
	errorMsg := "unknown error"
	if err != nil {
		errorMsg = err.Error()
	}
	m.logger.ErrorContext(ctx, "pipeline run failed",
		slog.String("operation_id", operationID),
		slog.String("error_type", string(GetErrorType(err))),
		slog.String("error", errorMsg))
}

// logStageStart logs the start of a Step execution
func (m *Manager) logStageStart(ctx context.Context, operationID, stageID string) {
	m.logger.InfoContext(ctx, "step started",
		slog.String("operation_id", operationID),
		slog.String("step", stageID))
}

// logStageComplete logs the completion of a Step execution
func (m *Manager) logStageComplete(ctx context.Context, operationID, stageID string, duration time.Duration, rows int) {
	m.logger.InfoContext(ctx, "step completed",
		slog.String("operation_id", operationID),
		slog.String("step", stageID),
		slog.Int("rows", rows),
		slog.Duration("duration", duration))
}

// logStageError logs a Step error
func (m *Manager) logStageError(ctx context.Context, operationID, stageID string, err error) {
	errorMsg := "unknown error"
	if err != nil {
		errorMsg = err.Error()
	}
	m.logger.ErrorContext(ctx, "step failed",
		slog.String("operation_id", operationID),
		slog.String("step", stageID),
		slog.String("error", errorMsg))
}
