package operations_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"optpricer/internal/operations"
	"optpricer/pkg/contracts/domain"
)

// fakeStep records its execution and runs fn
type fakeStep struct {
	operations.BaseStage
	fn       func(ctx context.Context, state *operations.OperationState) error
	validate error
	ran      *[]string
}

func newFakeStep(id string, deps []string, ran *[]string, fn func(context.Context, *operations.OperationState) error) *fakeStep {
	return &fakeStep{
		BaseStage: operations.NewBaseStage(id, "Fake "+id, deps),
		fn:        fn,
		ran:       ran,
	}
}

func (s *fakeStep) Validate(state *operations.OperationState) error {
	return s.validate
}

func (s *fakeStep) Execute(ctx context.Context, state *operations.OperationState) error {
	if s.ran != nil {
		*s.ran = append(*s.ran, s.ID())
	}
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, state)
}

type stubPositions struct {
	rows []domain.PositionRow
	err  error
}

func (s stubPositions) FetchPositions(context.Context, time.Time) ([]domain.PositionRow, error) {
	return domain.CloneRows(s.rows), s.err
}

type stubExpiries struct {
	records []domain.ExpiryRecord
	err     error
	asOf    string
}

func (s *stubExpiries) Fetch(_ context.Context, asOf string, _ []string) ([]domain.ExpiryRecord, error) {
	s.asOf = asOf
	return s.records, s.err
}

// stubCaller answers pricing calls per exposure
type stubCaller struct {
	mu       sync.Mutex
	ivol     map[string]float64
	price    map[string]float64
	payloads []domain.PricingPayload
	ivolReqs []domain.VolatilityRequest
	onPrice  func(ctx context.Context)
}

func (s *stubCaller) GetIVol(_ context.Context, req domain.VolatilityRequest) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ivolReqs = append(s.ivolReqs, req)
	v, ok := s.ivol[req.Exposure]
	if !ok {
		return 0, errors.New("no volatility for " + req.Exposure)
	}
	return v, nil
}

func (s *stubCaller) GetPriceVanilla(ctx context.Context, p domain.PricingPayload) (float64, error) {
	s.mu.Lock()
	s.payloads = append(s.payloads, p)
	hook := s.onPrice
	s.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}
	v, ok := s.price[p.Exposure]
	if !ok {
		return 0, errors.New("pricing service returned 500")
	}
	return v, nil
}
