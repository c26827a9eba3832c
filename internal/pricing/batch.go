package pricing

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"optpricer/pkg/contracts/domain"
)

// Caller is the subset of Client a Batch needs
type Caller interface {
	GetIVol(ctx context.Context, req domain.VolatilityRequest) (float64, error)
	GetPriceVanilla(ctx context.Context, p domain.PricingPayload) (float64, error)
}

// BatchOptions configures a Batch
type BatchOptions struct {
	// CallDelay is the pause a worker takes after each call before its next one.
	// It also caps the call start rate. Zero disables both.
	CallDelay time.Duration
	// Concurrency bounds in-flight calls. Values below 1 mean 1.
	Concurrency int
}

// Batch runs many service calls with throttling and bounded concurrency.
// Results always line up with their requests by index.
type Batch struct {
	caller      Caller
	delay       time.Duration
	limiter     *rate.Limiter
	concurrency int
	logger      *slog.Logger
}

// NewBatch creates a batch runner over caller
func NewBatch(caller Caller, opts BatchOptions, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if opts.CallDelay > 0 {
		limit = rate.Every(opts.CallDelay)
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Batch{
		caller:      caller,
		delay:       max(opts.CallDelay, 0),
		limiter:     rate.NewLimiter(limit, 1),
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "pricing_batch")),
	}
}

// Volatilities calls getIVol for every request. The error is non-nil only when
// ctx ends; rows not attempted then carry the context error.
func (b *Batch) Volatilities(ctx context.Context, reqs []domain.VolatilityRequest) ([]domain.PricingResult, error) {
	return b.run(ctx, EndpointIVol, len(reqs),
		func(i int) string { return reqs[i].Exposure },
		func(ctx context.Context, i int) (float64, error) { return b.caller.GetIVol(ctx, reqs[i]) })
}

// Prices calls getPriceVanilla for every payload. The error is non-nil only when
// ctx ends; rows not attempted then carry the context error.
func (b *Batch) Prices(ctx context.Context, payloads []domain.PricingPayload) ([]domain.PricingResult, error) {
	return b.run(ctx, EndpointPrice, len(payloads),
		func(i int) string { return payloads[i].Exposure },
		func(ctx context.Context, i int) (float64, error) { return b.caller.GetPriceVanilla(ctx, payloads[i]) })
}

func (b *Batch) run(ctx context.Context, endpoint string, n int, exposure func(int) string, call func(context.Context, int) (float64, error)) ([]domain.PricingResult, error) {
	results := make([]domain.PricingResult, n)
	if n == 0 {
		return results, nil
	}

	b.logger.InfoContext(ctx, "starting pricing calls",
		slog.String("endpoint", endpoint),
		slog.Int("requests", n),
		slog.Int("concurrency", b.concurrency))

	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)

	for i := 0; i < n; i++ {
		results[i].Exposure = exposure(i)

		if err := b.limiter.Wait(ctx); err != nil {
			for j := i; j < n; j++ {
				results[j] = domain.PricingResult{Exposure: exposure(j), Error: err.Error()}
			}
			break
		}

		g.Go(func() error {
			// A slot may free up only after ctx ended
			if err := ctx.Err(); err != nil {
				results[i].Error = err.Error()
				return nil
			}
			v, err := call(ctx, i)
			if i < n-1 {
				defer b.pause(ctx)
			}
			if err != nil {
				results[i].Error = err.Error()
				b.logger.WarnContext(ctx, "pricing call failed",
					slog.String("endpoint", endpoint),
					slog.Int("row", i),
					slog.String("exposure", results[i].Exposure),
					slog.String("error", err.Error()))
				return nil
			}
			results[i].Value = &v
			b.logger.DebugContext(ctx, "pricing call succeeded",
				slog.String("endpoint", endpoint),
				slog.Int("row", i),
				slog.String("exposure", results[i].Exposure),
				slog.Float64("value", v))
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	b.logger.InfoContext(ctx, "pricing calls completed",
		slog.String("endpoint", endpoint),
		slog.Int("successful", n-failed),
		slog.Int("failed", failed))

	return results, ctx.Err()
}

// pause holds the worker's slot for the call delay, so the next call on it starts
// no sooner than CallDelay after this one returned
func (b *Batch) pause(ctx context.Context) {
	if b.delay <= 0 {
		return
	}
	t := time.NewTimer(b.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
