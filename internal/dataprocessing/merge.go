package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	apperrors "optpricer/internal/errors"
	"optpricer/pkg/contracts/domain"
)

// MergeReport describes the join between rows and pricing results
type MergeReport struct {
	Rows    int
	Results int
	// DuplicateKeys lists exposures that occur more than once on either side
	DuplicateKeys []string
	Priced        int
	Failed        int
	Output        int
}

// Merger left-joins position rows with pricing results on exposure
type Merger struct {
	strict bool
	logger *slog.Logger
}

// NewMerger creates a merger. In strict mode a duplicated join key is an error.
func NewMerger(strict bool, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		strict: strict,
		logger: logger.With(slog.String("component", "merger")),
	}
}

// Merge keeps every row. A row whose exposure has no result gets empty computed
// fields; a row whose exposure has k results yields k rows in result order.
func (m *Merger) Merge(ctx context.Context, rows []domain.PositionRow, results []domain.PricingResult) ([]domain.MergedRow, MergeReport, error) {
	report := MergeReport{Rows: len(rows), Results: len(results)}

	byExposure := make(map[string][]domain.PricingResult, len(results))
	for _, r := range results {
		byExposure[r.Exposure] = append(byExposure[r.Exposure], r)
	}

	report.DuplicateKeys = duplicateKeys(rows, byExposure)
	if len(report.DuplicateKeys) > 0 {
		if m.strict {
			return nil, report, apperrors.NewAppValidationError(
				fmt.Sprintf("duplicate exposure join keys: %v", report.DuplicateKeys))
		}
		m.logger.WarnContext(ctx, "duplicate exposure join keys, merge may multiply rows",
			slog.Int("count", len(report.DuplicateKeys)),
			slog.Any("exposures", report.DuplicateKeys))
	}

	out := make([]domain.MergedRow, 0, len(rows))
	for _, row := range rows {
		matches := byExposure[row.Exposure]
		if len(matches) == 0 {
			out = append(out, domain.MergedRow{PositionRow: row.Clone()})
			continue
		}
		for _, res := range matches {
			merged := domain.MergedRow{PositionRow: row.Clone()}
			if res.OK() {
				v := *res.Value
				merged.ComputedValue = &v
				report.Priced++
			} else {
				merged.Error = res.Error
				report.Failed++
			}
			out = append(out, merged)
		}
	}
	report.Output = len(out)

	m.logger.InfoContext(ctx, "pricing results merged",
		slog.Int("rows", report.Rows),
		slog.Int("results", report.Results),
		slog.Int("priced", report.Priced),
		slog.Int("failed", report.Failed),
		slog.Int("output", report.Output))

	return out, report, nil
}

func duplicateKeys(rows []domain.PositionRow, results map[string][]domain.PricingResult) []string {
	seen := make(map[string]int, len(rows))
	for _, r := range rows {
		seen[r.Exposure]++
	}
	dup := make(map[string]bool)
	for k, n := range seen {
		if n > 1 {
			dup[k] = true
		}
	}
	for k, rs := range results {
		if len(rs) > 1 {
			dup[k] = true
		}
	}
	keys := make([]string, 0, len(dup))
	for k := range dup {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
