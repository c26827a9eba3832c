package datasource

import (
	"fmt"
	"log/slog"
	"strings"

	apperrors "optpricer/internal/errors"
	"optpricer/pkg/contracts/domain"
)

// PositionColumns must be present in a positions export
var PositionColumns = []string{
	"exposure", "end_date", "market_price", "future_value",
	"option_type", "strike", "rf_rate",
}

// MappingColumns must be present in a mapping sheet
var MappingColumns = []string{"opt_symbol", "exchange"}

// SettlementRequestColumns must be present in a settlement request sheet
var SettlementRequestColumns = []string{"crate_ticks", "ym_key", "option_type", "strike", "source"}

// PositionFilter restricts which exported rows are read. An empty StrategyIDs
// keeps every strategy.
type PositionFilter struct {
	StrategyIDs []string
}

// ReadPositions reads positions from a CSV or XLSX export of the valuation table.
// When the export carries instrument_type, position_type or strategy_id columns
// the same filters as the database query apply.
func ReadPositions(path string, filter PositionFilter, logger *slog.Logger) ([]domain.PositionRow, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t, err := readTable(path, PositionColumns, logger)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(filter.StrategyIDs))
	for _, id := range filter.StrategyIDs {
		allowed[id] = true
	}

	var (
		out      []domain.PositionRow
		filtered int
	)
	for i, rec := range t.rows {
		if isBlank(rec) {
			continue
		}
		if t.has("instrument_type") && !strings.EqualFold(t.get(rec, "instrument_type"), "Option") {
			filtered++
			continue
		}
		if t.has("position_type") && !strings.EqualFold(t.get(rec, "position_type"), "exposure") {
			filtered++
			continue
		}
		if len(allowed) > 0 && t.has("strategy_id") && !allowed[t.get(rec, "strategy_id")] {
			filtered++
			continue
		}

		row, err := positionFromRecord(t, rec)
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("%s row %d", path, i+2), err)
		}
		out = append(out, row)
	}

	logger.Info("positions read from file",
		slog.String("file", path),
		slog.Int("rows", len(out)),
		slog.Int("filtered", filtered))
	return out, nil
}

func positionFromRecord(t *table, rec []string) (domain.PositionRow, error) {
	row := domain.PositionRow{
		StrategyID:     t.get(rec, "strategy_id"),
		Exposure:       t.get(rec, "exposure"),
		InstrumentType: t.get(rec, "instrument_type"),
		OptionType:     domain.OptionType(t.get(rec, "option_type")),
	}

	var err error
	if row.EndDate, err = parseTime(t.get(rec, "end_date")); err != nil {
		return row, fmt.Errorf("end_date: %w", err)
	}
	floats := []struct {
		col string
		dst **float64
	}{
		{"market_price", &row.MarketPrice},
		{"future_value", &row.FutureValue},
		{"strike", &row.Strike},
		{"rf_rate", &row.RFRate},
		{"ivol", &row.IVol},
	}
	for _, f := range floats {
		if *f.dst, err = parseFloat(t.get(rec, f.col)); err != nil {
			return row, fmt.Errorf("%s: %w", f.col, err)
		}
	}
	return row, nil
}

// ReadMapping reads the symbol/exchange mapping sheet
func ReadMapping(path string, logger *slog.Logger) ([]domain.MappingRow, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t, err := readTable(path, MappingColumns, logger)
	if err != nil {
		return nil, err
	}

	var out []domain.MappingRow
	for _, rec := range t.rows {
		if isBlank(rec) {
			continue
		}
		out = append(out, domain.MappingRow{
			OptSymbol:     t.get(rec, "opt_symbol"),
			Exchange:      t.get(rec, "exchange"),
			Scheme:        t.get(rec, "scheme"),
			TempestCode:   t.get(rec, "tempest_code"),
			CommodityCode: t.get(rec, "commodity_code"),
		})
	}

	logger.Info("mapping read", slog.String("file", path), slog.Int("rows", len(out)))
	return out, nil
}

// ReadSettlementRequests reads the contracts whose settlements are wanted
func ReadSettlementRequests(path string, logger *slog.Logger) ([]domain.SettlementRequest, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t, err := readTable(path, SettlementRequestColumns, logger)
	if err != nil {
		return nil, err
	}

	var out []domain.SettlementRequest
	for _, rec := range t.rows {
		if isBlank(rec) {
			continue
		}
		out = append(out, domain.SettlementRequest{
			CrateTicks: t.get(rec, "crate_ticks"),
			YMKey:      t.get(rec, "ym_key"),
			OptionType: domain.OptionType(t.get(rec, "option_type")),
			Strike:     t.get(rec, "strike"),
			Source:     t.get(rec, "source"),
		})
	}

	logger.Info("settlement requests read", slog.String("file", path), slog.Int("rows", len(out)))
	return out, nil
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
