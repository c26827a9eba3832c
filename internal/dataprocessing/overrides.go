package dataprocessing

import (
	"context"
	"log/slog"
	"sort"

	"optpricer/pkg/contracts/domain"
)

// OverrideReport lists what ApplyOverrides changed
type OverrideReport struct {
	RowsChanged int
	// Unused holds configured exposures that matched no row
	Unused []string
}

// ApplyOverrides returns a copy of rows with future_value replaced for every exposure
// present in overrides. The input is not modified.
func ApplyOverrides(ctx context.Context, rows []domain.PositionRow, overrides map[string]float64, logger *slog.Logger) ([]domain.PositionRow, OverrideReport) {
	if logger == nil {
		logger = slog.Default()
	}

	out := domain.CloneRows(rows)
	var report OverrideReport
	if len(overrides) == 0 {
		return out, report
	}

	used := make(map[string]bool, len(overrides))
	for i := range out {
		v, ok := overrides[out[i].Exposure]
		if !ok {
			continue
		}
		out[i].FutureValue = domain.Float(v)
		used[out[i].Exposure] = true
		report.RowsChanged++
	}

	for exposure := range overrides {
		if !used[exposure] {
			report.Unused = append(report.Unused, exposure)
		}
	}
	sort.Strings(report.Unused)

	logger.InfoContext(ctx, "manual future value overrides applied",
		slog.Int("configured", len(overrides)),
		slog.Int("rows_changed", report.RowsChanged),
		slog.Any("unused", report.Unused))

	return out, report
}
