package validation

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "optpricer/internal/errors"
	"optpricer/internal/shared/testutil"
	"optpricer/pkg/contracts/domain"
)

func TestNormalize(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	n := NewNormalizer(0.0434, logger)

	missingFV := testutil.OptionRow("NOFV")
	missingFV.FutureValue = nil

	zeroRate := testutil.OptionRow("ZERO")
	zeroRate.RFRate = domain.Float(0)

	nullRate := testutil.OptionRow("NULL")
	nullRate.RFRate = nil

	kept := testutil.OptionRow("KEEP")

	input := []domain.PositionRow{missingFV, zeroRate, nullRate, kept}
	out, report := n.Normalize(context.Background(), input)

	require.Len(t, out, 3)
	assert.Equal(t, "ZERO", out[0].Exposure)
	assert.Equal(t, "NULL", out[1].Exposure)
	assert.Equal(t, "KEEP", out[2].Exposure)

	assert.InDelta(t, 0.0434, *out[0].RFRate, 1e-12)
	assert.InDelta(t, 0.0434, *out[1].RFRate, 1e-12)
	assert.InDelta(t, 0.05, *out[2].RFRate, 1e-12)

	assert.Equal(t, NormalizeReport{Input: 4, MissingFutureValue: 1, DefaultedRFRate: 2, Output: 3}, report)

	// Input untouched
	assert.InDelta(t, 0.0, *input[1].RFRate, 1e-12)
	assert.Nil(t, input[2].RFRate)

	// Outputs don't alias input pointers
	*out[2].Strike = 999
	assert.InDelta(t, 50.0, *input[3].Strike, 1e-12)

	testutil.AssertLogAttr(t, logs, "missing_future_value", int64(1))
	testutil.AssertLogAttr(t, logs, "component", "normalizer")
}

func TestNormalizeEmpty(t *testing.T) {
	out, report := NewNormalizer(0.0434, slog.Default()).Normalize(context.Background(), nil)
	assert.Empty(t, out)
	assert.Equal(t, 0, report.Output)
}

func TestForVolatility(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	n := NewNormalizer(0.0434, logger)

	noExpiry := testutil.OptionRow("NOEXP")
	noExpiry.OptionExpiry = nil

	noStrikeNoPrice := testutil.OptionRow("NOSTRIKE")
	noStrikeNoPrice.Strike = nil
	noStrikeNoPrice.MarketPrice = nil

	badType := testutil.OptionRow("BADTYPE")
	badType.OptionType = "straddle"

	upperPut := testutil.OptionRow("PUT")
	upperPut.OptionType = "PUT"

	rows := []domain.PositionRow{testutil.OptionRow("OK"), noExpiry, noStrikeNoPrice, badType, upperPut}

	eligible, rejected := n.ForVolatility(context.Background(), rows)

	assert.Equal(t, []int{0, 4}, eligible)
	require.Len(t, rejected, 3)

	assert.Equal(t, 1, rejected[0].Index)
	assert.Contains(t, rejected[0].Reason, "missing option_expiry")

	assert.Equal(t, "NOSTRIKE", rejected[1].Exposure)
	assert.Contains(t, rejected[1].Reason, "missing market_price, strike")

	assert.Contains(t, rejected[2].Reason, "invalid option_type=straddle")

	assert.Len(t, logs.GetRecordsByLevel(slog.LevelWarn), 3)
}

func TestCheckPricing(t *testing.T) {
	n := NewNormalizer(0.0434, nil)

	row := testutil.OptionRow("E1")
	err := n.CheckPricing(row)
	require.Error(t, err, "no volatility at all")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "missing ivol")

	row.IVol = domain.Float(0.3)
	assert.NoError(t, n.CheckPricing(row))

	row.IVol = nil
	row.ComputedIVol = domain.Float(0.25)
	assert.NoError(t, n.CheckPricing(row))

	row.RFRate = nil
	assert.Error(t, n.CheckPricing(row))
}
