package validation

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "optpricer/internal/errors"
	"optpricer/pkg/contracts/domain"
)

// volatilityFields are the inputs getIVol needs from a row
type volatilityFields struct {
	Exposure     string     `json:"exposure" validate:"required"`
	OptionExpiry *time.Time `json:"option_expiry" validate:"required"`
	Strike       *float64   `json:"strike" validate:"required"`
	OptionType   string     `json:"option_type" validate:"required,oneof=call put"`
	FutureValue  *float64   `json:"future_value" validate:"required"`
	MarketPrice  *float64   `json:"market_price" validate:"required"`
	RFRate       *float64   `json:"rf_rate" validate:"required"`
}

// pricingFields are the inputs getPriceVanilla needs from a row
type pricingFields struct {
	Exposure     string     `json:"exposure" validate:"required"`
	OptionExpiry *time.Time `json:"option_expiry" validate:"required"`
	Strike       *float64   `json:"strike" validate:"required"`
	OptionType   string     `json:"option_type" validate:"required,oneof=call put"`
	FutureValue  *float64   `json:"future_value" validate:"required"`
	IVol         *float64   `json:"ivol" validate:"required"`
	RFRate       *float64   `json:"rf_rate" validate:"required"`
}

// Rejection records why a row was left out of a stage
type Rejection struct {
	Index    int
	Exposure string
	Reason   string
}

// NormalizeReport counts what Normalize did
type NormalizeReport struct {
	Input              int
	MissingFutureValue int
	DefaultedRFRate    int
	Output             int
}

// Normalizer applies row-level cleaning rules before any remote call
type Normalizer struct {
	defaultRFRate float64
	validate      *validator.Validate
	logger        *slog.Logger
}

// NewNormalizer creates a normalizer that fills missing or zero rates with defaultRFRate
func NewNormalizer(defaultRFRate float64, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Normalizer{
		defaultRFRate: defaultRFRate,
		validate:      v,
		logger:        logger.With(slog.String("component", "normalizer")),
	}
}

// Normalize drops rows without a future value and defaults null or zero rf_rate.
// The input slice and its rows are never modified.
func (n *Normalizer) Normalize(ctx context.Context, rows []domain.PositionRow) ([]domain.PositionRow, NormalizeReport) {
	report := NormalizeReport{Input: len(rows)}
	out := make([]domain.PositionRow, 0, len(rows))

	for i, row := range rows {
		if row.FutureValue == nil {
			report.MissingFutureValue++
			n.logger.DebugContext(ctx, "dropping row without future value",
				slog.Int("row", i),
				slog.String("exposure", row.Exposure))
			continue
		}

		c := row.Clone()
		if c.RFRate == nil || *c.RFRate == 0 {
			c.RFRate = domain.Float(n.defaultRFRate)
			report.DefaultedRFRate++
		}
		out = append(out, c)
	}

	report.Output = len(out)
	n.logger.InfoContext(ctx, "rows normalized",
		slog.Int("input", report.Input),
		slog.Int("missing_future_value", report.MissingFutureValue),
		slog.Int("defaulted_rf_rate", report.DefaultedRFRate),
		slog.Float64("default_rf_rate", n.defaultRFRate),
		slog.Int("output", report.Output))

	return out, report
}

// ForVolatility returns the indexes of rows that carry every getIVol input.
// Other rows are reported with a reason and logged; they are not an error.
func (n *Normalizer) ForVolatility(ctx context.Context, rows []domain.PositionRow) ([]int, []Rejection) {
	eligible := make([]int, 0, len(rows))
	var rejected []Rejection

	for i, row := range rows {
		if err := n.CheckVolatility(row); err != nil {
			rejected = append(rejected, Rejection{Index: i, Exposure: row.Exposure, Reason: err.Error()})
			n.logger.WarnContext(ctx, "row excluded from volatility lookup",
				slog.Int("row", i),
				slog.String("exposure", row.Exposure),
				slog.String("reason", err.Error()))
			continue
		}
		eligible = append(eligible, i)
	}

	return eligible, rejected
}

// CheckVolatility validates the getIVol inputs of one row
func (n *Normalizer) CheckVolatility(row domain.PositionRow) error {
	return n.check(row.Exposure, volatilityFields{
		Exposure:     row.Exposure,
		OptionExpiry: row.OptionExpiry,
		Strike:       row.Strike,
		OptionType:   normalizedOptionType(row.OptionType),
		FutureValue:  row.FutureValue,
		MarketPrice:  row.MarketPrice,
		RFRate:       row.RFRate,
	})
}

// CheckPricing validates the getPriceVanilla inputs of one row.
// The volatility used is the computed one when present.
func (n *Normalizer) CheckPricing(row domain.PositionRow) error {
	return n.check(row.Exposure, pricingFields{
		Exposure:     row.Exposure,
		OptionExpiry: row.OptionExpiry,
		Strike:       row.Strike,
		OptionType:   normalizedOptionType(row.OptionType),
		FutureValue:  row.FutureValue,
		IVol:         row.EffectiveIVol(),
		RFRate:       row.RFRate,
	})
}

func (n *Normalizer) check(exposure string, fields interface{}) error {
	err := n.validate.Struct(fields)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewAppValidationError(err.Error()).WithContext("exposure", exposure)
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fmt.Sprintf("%s=%v", fe.Field(), fe.Value()))
		}
	}
	sort.Strings(missing)
	sort.Strings(invalid)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(invalid, ", "))
	}
	return apperrors.NewAppValidationError(strings.Join(parts, "; ")).WithContext("exposure", exposure)
}

func normalizedOptionType(t domain.OptionType) string {
	return strings.ToLower(strings.TrimSpace(string(t)))
}
