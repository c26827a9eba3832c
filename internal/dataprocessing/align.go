package dataprocessing

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"optpricer/pkg/contracts/domain"
)

var (
	futureSymbolPattern = regexp.MustCompile(`^(\S+)`)
	futureYMPattern     = regexp.MustCompile(`(\d{6})`)
)

// expiryKey joins positions to expiries
type expiryKey struct {
	symbol string
	ym     int
}

// AlignReport counts the outcome of an alignment
type AlignReport struct {
	Input     int
	Matched   int
	Unmatched int
	Unmapped  int
	// Expanded counts extra rows produced when one key matched several expiries
	Expanded int
	Output   int
}

// ExpiryAligner attaches option expiries to positions by (symbol, YYYYMM)
type ExpiryAligner struct {
	symbols map[string]string
	logger  *slog.Logger
}

// NewExpiryAligner creates an aligner using an exposure to future-symbol map
func NewExpiryAligner(symbols map[string]string, logger *slog.Logger) *ExpiryAligner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpiryAligner{
		symbols: symbols,
		logger:  logger.With(slog.String("component", "expiry_aligner")),
	}
}

// ParseFutureKey extracts the leading symbol and the first six-digit YYYYMM group
// from a future instrument key such as "B 202512 F". ok is false when either is absent.
func ParseFutureKey(futureKey string) (symbol string, ym int, ok bool) {
	m := futureSymbolPattern.FindStringSubmatch(futureKey)
	if m == nil {
		return "", 0, false
	}
	d := futureYMPattern.FindStringSubmatch(futureKey)
	if d == nil {
		return m[1], 0, false
	}
	ym, err := strconv.Atoi(d[1])
	if err != nil {
		return m[1], 0, false
	}
	return m[1], ym, true
}

// YearMonthKey returns t as the integer YYYYMM
func YearMonthKey(t time.Time) int {
	return t.Year()*100 + int(t.Month())
}

// Align left-joins rows with expiries on (symbol, YYYYMM). Rows without a match keep
// a nil OptionExpiry. A key matching several expiry records yields one row per
// record, duplicates included.
func (a *ExpiryAligner) Align(ctx context.Context, rows []domain.PositionRow, expiries []domain.ExpiryRecord) ([]domain.PositionRow, AlignReport) {
	index := make(map[expiryKey][]time.Time)
	for _, e := range expiries {
		symbol, ym, ok := ParseFutureKey(e.FutureKey)
		if !ok {
			a.logger.DebugContext(ctx, "skipping expiry with unparseable future key",
				slog.String("future_key", e.FutureKey))
			continue
		}
		key := expiryKey{symbol: symbol, ym: ym}
		index[key] = append(index[key], e.OptionExpiry)
	}

	report := AlignReport{Input: len(rows)}
	out := make([]domain.PositionRow, 0, len(rows))

	for _, row := range rows {
		c := row.Clone()
		c.Symbol = a.symbols[row.Exposure]
		c.YMKey = 0
		if row.EndDate != nil {
			c.YMKey = YearMonthKey(*row.EndDate)
		}
		if c.Symbol == "" {
			report.Unmapped++
		}

		matches := index[expiryKey{symbol: c.Symbol, ym: c.YMKey}]
		if c.Symbol == "" || c.YMKey == 0 || len(matches) == 0 {
			c.OptionExpiry = nil
			report.Unmatched++
			out = append(out, c)
			continue
		}

		report.Matched++
		report.Expanded += len(matches) - 1
		for _, expiry := range matches {
			m := c.Clone()
			m.OptionExpiry = domain.Date(expiry)
			out = append(out, m)
		}
	}

	report.Output = len(out)

	if report.Expanded > 0 {
		a.logger.WarnContext(ctx, "expiry alignment duplicated rows",
			slog.Int("extra_rows", report.Expanded))
	}
	a.logger.InfoContext(ctx, "option expiries aligned",
		slog.Int("input", report.Input),
		slog.Int("matched", report.Matched),
		slog.Int("unmatched", report.Unmatched),
		slog.Int("unmapped_exposures", report.Unmapped),
		slog.Int("output", report.Output))

	return out, report
}
