package pricing

import (
	"context"
	"log/slog"
	"time"

	"optpricer/internal/validation"
	"optpricer/pkg/contracts/domain"
)

// DateLayout is the date format of the service's path segments
const DateLayout = "2006-01-02"

// Builder creates service requests from position rows
type Builder struct {
	asOf          string
	ivolScheme    domain.Scheme
	priceScheme   domain.Scheme
	model         string
	defaultRFRate float64
	normalizer    *validation.Normalizer
	logger        *slog.Logger
}

// BuilderOptions configures a Builder
type BuilderOptions struct {
	AsOf          time.Time
	IVolScheme    domain.Scheme
	PriceScheme   domain.Scheme
	Model         string
	DefaultRFRate float64
}

// NewBuilder creates a payload builder
func NewBuilder(opts BuilderOptions, normalizer *validation.Normalizer, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if normalizer == nil {
		normalizer = validation.NewNormalizer(opts.DefaultRFRate, logger)
	}
	return &Builder{
		asOf:          opts.AsOf.Format(DateLayout),
		ivolScheme:    opts.IVolScheme,
		priceScheme:   opts.PriceScheme,
		model:         opts.Model,
		defaultRFRate: opts.DefaultRFRate,
		normalizer:    normalizer,
		logger:        logger.With(slog.String("component", "payload_builder")),
	}
}

// withRate returns a copy of row whose null or zero rf_rate is replaced by the default
func (b *Builder) withRate(row domain.PositionRow) domain.PositionRow {
	c := row.Clone()
	if c.RFRate == nil || *c.RFRate == 0 {
		c.RFRate = domain.Float(b.defaultRFRate)
	}
	return c
}

// VolatilityRequest builds the getIVol parameters for row
func (b *Builder) VolatilityRequest(row domain.PositionRow) (domain.VolatilityRequest, error) {
	r := b.withRate(row)
	if err := b.normalizer.CheckVolatility(r); err != nil {
		return domain.VolatilityRequest{}, err
	}
	return domain.VolatilityRequest{
		Exposure:       r.Exposure,
		AsOfDate:       b.asOf,
		ExpirationDate: r.OptionExpiry.Format(DateLayout),
		Strike:         *r.Strike,
		Parity:         r.OptionType.Parity(),
		FutureValue:    *r.FutureValue,
		MarketPrice:    *r.MarketPrice,
		RFRate:         *r.RFRate,
		Scheme:         b.ivolScheme,
		Model:          b.model,
	}, nil
}

// Payload builds the getPriceVanilla parameters for row. The volatility is the
// computed one when present, otherwise the stored one.
func (b *Builder) Payload(row domain.PositionRow) (domain.PricingPayload, error) {
	r := b.withRate(row)
	if err := b.normalizer.CheckPricing(r); err != nil {
		return domain.PricingPayload{}, err
	}
	return domain.PricingPayload{
		Exposure:       r.Exposure,
		AsOfDate:       b.asOf,
		ExpirationDate: r.OptionExpiry.Format(DateLayout),
		Strike:         *r.Strike,
		Parity:         r.OptionType.Parity(),
		FutureValue:    *r.FutureValue,
		IVol:           *r.EffectiveIVol(),
		RFRate:         *r.RFRate,
		Scheme:         b.priceScheme,
		Model:          b.model,
	}, nil
}

// Payloads builds one payload per valid row, in row order. Invalid rows are
// logged and reported, never returned as an error.
func (b *Builder) Payloads(ctx context.Context, rows []domain.PositionRow) ([]domain.PricingPayload, []validation.Rejection) {
	payloads := make([]domain.PricingPayload, 0, len(rows))
	var rejected []validation.Rejection

	for i, row := range rows {
		p, err := b.Payload(row)
		if err != nil {
			rejected = append(rejected, validation.Rejection{Index: i, Exposure: row.Exposure, Reason: err.Error()})
			b.logger.WarnContext(ctx, "failed to build pricing payload",
				slog.Int("row", i),
				slog.String("exposure", row.Exposure),
				slog.String("reason", err.Error()))
			continue
		}
		payloads = append(payloads, p)
	}

	b.logger.InfoContext(ctx, "pricing payloads built",
		slog.Int("rows", len(rows)),
		slog.Int("payloads", len(payloads)),
		slog.Int("rejected", len(rejected)))

	return payloads, rejected
}
