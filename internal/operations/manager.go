package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"optpricer/internal/infrastructure"
	"optpricer/pkg/contracts/domain"
)

// Manager runs the registered steps of a pipeline one after another
type Manager struct {
	registry *Registry
	tracer   *OperationTracer
	logger   *slog.Logger

	// current is the most recently started run
	current atomic.Pointer[OperationState]
}

// NewManager creates a new operation manager. tracer may be nil.
func NewManager(registry *Registry, tracer *OperationTracer, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if tracer == nil {
		tracer = NewOperationTracer(nil, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry: registry,
		tracer:   tracer,
		logger:   logger.With(slog.String("component", "operation_manager")),
	}
}

// RegisterStage registers a Step with the operation
func (m *Manager) RegisterStage(step Step) error {
	return m.registry.Register(step)
}

// GetRegistry returns the registry for accessing registered stages
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// Current returns the state of the latest run, or nil before the first one
func (m *Manager) Current() *OperationState {
	return m.current.Load()
}

// Execute runs every step for the valuation date asOf. The returned summary is
// never nil; it describes whatever was done before a stop or failure.
//
// A Step that finds nothing to hand on calls OperationState.Stop; the run then
// ends without error and the remaining steps are skipped. A Step error ends
// the run with an *OperationError.
func (m *Manager) Execute(ctx context.Context, runID string, asOf time.Time) (*domain.RunSummary, *OperationState, error) {
	if runID != "" {
		ctx = infrastructure.WithTraceID(ctx, runID)
	} else {
		ctx = infrastructure.EnsureTraceID(ctx)
		runID = infrastructure.GetTraceID(ctx)
	}

	state := NewOperationState(runID, asOf)
	m.current.Store(state)

	steps, err := m.registry.GetDependencyOrder()
	if err != nil {
		opErr := NewFatalError("failed to order steps", err)
		m.logOperationError(ctx, runID, opErr)
		state.Fail(opErr)
		return &state.Summary, state, opErr
	}
	for _, step := range steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}

	ctx, span := m.tracer.TraceOperationExecution(ctx, runID, asOf)
	m.logOperationStart(ctx, runID, asOf, len(steps))
	state.Start()

	err = m.executeSequential(ctx, state, steps)

	status := infrastructure.StatusSuccess
	switch {
	case err == nil:
		state.Complete()
	case GetErrorType(err) == ErrorTypeCancellation:
		state.Cancel(err)
		status = infrastructure.StatusFailure
	default:
		state.Fail(err)
		status = infrastructure.StatusFailure
	}
	if err != nil {
		m.logOperationError(ctx, runID, err)
	}

	m.tracer.RecordOperationCompletion(ctx, span, state.Summary, status, err)
	m.logOperationComplete(ctx, state)

	return &state.Summary, state, err
}

// executeSequential executes steps one by one
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			m.logger.WarnContext(ctx, "operation cancelled",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			m.skipRemaining(ctx, state, steps[i:], "operation cancelled")
			return NewCancellationError(step.ID(), err)
		}

		if state.Stopped() {
			m.skipRemaining(ctx, state, steps[i:], "stopped at "+state.Summary.StoppedAt+": "+state.Summary.StoppedBecause)
			return nil
		}

		m.logger.DebugContext(ctx, "executing step",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStage(ctx, state, step); err != nil {
			m.skipRemaining(ctx, state, steps[i+1:], fmt.Sprintf("step %s failed", step.ID()))
			return err
		}
	}

	return nil
}

// executeStage validates and runs a single Step
func (m *Manager) executeStage(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStage(step.ID())
	if stepState == nil {
		return NewFatalError("step state not found", fmt.Errorf("step %s", step.ID()))
	}

	if err := step.Validate(state); err != nil {
		opErr := NewValidationError(step.ID(), err.Error())
		stepState.Fail(opErr)
		m.logStageError(ctx, state.ID, step.ID(), opErr)
		m.tracer.RecordStageSkipped(ctx, step.ID())
		return opErr
	}

	stageCtx, span := m.tracer.TraceStageExecution(ctx, state.ID, step.ID())
	m.logStageStart(stageCtx, state.ID, step.ID())
	stepState.Start()

	err := step.Execute(stageCtx, state)
	if err != nil {
		opErr := WrapError(err, step.ID())
		stepState.Fail(opErr)
		m.tracer.RecordStageError(span, opErr)
		m.tracer.RecordStageCompletion(stageCtx, span, step.ID(), stepState.Duration(), infrastructure.StatusFailure, 0)
		m.logStageError(stageCtx, state.ID, step.ID(), opErr)
		return opErr
	}

	stepState.Complete()
	_, rows := stepState.Snapshot()
	m.tracer.RecordStageCompletion(stageCtx, span, step.ID(), stepState.Duration(), infrastructure.StatusSuccess, rows)
	m.logStageComplete(stageCtx, state.ID, step.ID(), stepState.Duration(), rows)
	return nil
}

// skipRemaining marks steps that will not run
func (m *Manager) skipRemaining(ctx context.Context, state *OperationState, steps []Step, reason string) {
	for _, step := range steps {
		s := state.GetStage(step.ID())
		if s == nil {
			continue
		}
		if status, _ := s.Snapshot(); status != StepStatusPending {
			continue
		}
		s.Skip(reason)
		m.tracer.RecordStageSkipped(ctx, step.ID())
	}
}
