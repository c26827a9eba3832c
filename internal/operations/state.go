package operations

import (
	"sort"
	"sync"
	"time"

	"optpricer/internal/config"
	"optpricer/pkg/contracts/domain"
)

// OperationStatusValue represents the overall operation status enum
type OperationStatusValue string

const (
	OperationStatusPending   OperationStatusValue = "pending"
	OperationStatusRunning   OperationStatusValue = "running"
	OperationStatusCompleted OperationStatusValue = "completed"
	OperationStatusStopped   OperationStatusValue = "stopped"
	OperationStatusFailed    OperationStatusValue = "failed"
	OperationStatusCancelled OperationStatusValue = "cancelled"
)

// OperationState is the state of one pipeline run. Steps run one at a time and
// hand data to each other through the exported table fields.
type OperationState struct {
	mu sync.RWMutex

	ID        string               `json:"id"`
	Status    OperationStatusValue `json:"status"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`

	Steps map[string]*StepState `json:"steps"`

	// AsOf is the valuation date of the run
	AsOf time.Time `json:"as_of"`

	Rows         []domain.PositionRow    `json:"-"`
	Expiries     []domain.ExpiryRecord   `json:"-"`
	IVolResults  []domain.PricingResult  `json:"-"`
	Payloads     []domain.PricingPayload `json:"-"`
	PriceResults []domain.PricingResult  `json:"-"`
	Merged       []domain.MergedRow      `json:"-"`

	Summary domain.RunSummary `json:"summary"`

	stopped bool

	Error error `json:"error,omitempty"`
}

// NewOperationState creates a new operation state
func NewOperationState(id string, asOf time.Time) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
		AsOf:      asOf,
		Summary:   domain.RunSummary{RunID: id},
	}
}

// Start marks the operation as running
func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = OperationStatusRunning
	p.StartTime = time.Now()
}

// Complete marks the operation as completed, or stopped when a Step ended it early
func (p *OperationState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCompleted
	if p.stopped {
		p.Status = OperationStatusStopped
	}
}

// Fail marks the operation as failed
func (p *OperationState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusFailed
	p.Error = err
}

// Cancel marks the operation as cancelled
func (p *OperationState) Cancel(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCancelled
	p.Error = err
}

// Stop ends the run after the current Step without failing it. The tables
// built so far stay in place as the partial result.
func (p *OperationState) Stop(stepID, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	p.Summary.StoppedAt = stepID
	p.Summary.StoppedBecause = reason
}

// Stopped reports whether a Step called Stop
func (p *OperationState) Stopped() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stopped
}

// GetStage returns the state of a specific Step
func (p *OperationState) GetStage(stageID string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Steps[stageID]
}

// SetStage updates the state of a specific Step
func (p *OperationState) SetStage(stageID string, state *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Steps[stageID] = state
}

// RecordRows stores the output size of a Step on its StepState
func (p *OperationState) RecordRows(stageID string, n int, message string) {
	if s := p.GetStage(stageID); s != nil {
		s.SetRows(n, message)
	}
}

// Duration returns the duration of the operation execution
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// GetFailedStages returns all failed steps
func (p *OperationState) GetFailedStages() []*StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var failed []*StepState
	for _, s := range p.Steps {
		if status, _ := s.Snapshot(); status == StepStatusFailed {
			failed = append(failed, s)
		}
	}
	return failed
}

// HasFailures returns true if any Step has failed
func (p *OperationState) HasFailures() bool {
	return len(p.GetFailedStages()) > 0
}

// StepProgress is a point-in-time view of one Step
type StepProgress struct {
	ID     string     `json:"id"`
	Status StepStatus `json:"status"`
	Rows   int        `json:"rows"`
}

// Progress is a point-in-time view of a run that is safe to take while it executes
type Progress struct {
	ID        string               `json:"id"`
	Status    OperationStatusValue `json:"status"`
	AsOf      string               `json:"as_of"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`
	Steps     []StepProgress       `json:"steps"`
}

// Progress returns the run status and per-step progress sorted by step ID
func (p *OperationState) Progress() Progress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := Progress{
		ID:        p.ID,
		Status:    p.Status,
		AsOf:      p.AsOf.Format(config.DateLayout),
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		Steps:     make([]StepProgress, 0, len(p.Steps)),
	}
	for id, s := range p.Steps {
		status, rows := s.Snapshot()
		out.Steps = append(out.Steps, StepProgress{ID: id, Status: status, Rows: rows})
	}
	sort.Slice(out.Steps, func(i, j int) bool { return out.Steps[i].ID < out.Steps[j].ID })
	return out
}
