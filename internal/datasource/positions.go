package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	apperrors "optpricer/internal/errors"
	"optpricer/pkg/contracts/domain"
)

const positionsQueryBase = `SELECT DISTINCT
	strategy_id,
	exposure,
	end_date,
	market_price,
	instrument_type,
	future_value,
	option_type,
	strike,
	rf_rate
FROM position.aggregated_valuations
WHERE valuation_date = $1
	AND instrument_type = 'Option'
	AND position_type = 'exposure'
	AND strategy_id IN (%s)`

// PositionsQuery returns the positions SQL for n strategy ids. The valuation
// date is $1 and the ids follow as $2..$n+1.
func PositionsQuery(n int) string {
	placeholders := make([]string, n)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
	}
	return fmt.Sprintf(positionsQueryBase, strings.Join(placeholders, ", "))
}

// PositionStore reads option exposures from the back-office store
type PositionStore struct {
	conn   *Connector
	logger *slog.Logger
}

// NewPositionStore creates a position store over conn
func NewPositionStore(conn *Connector, logger *slog.Logger) *PositionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PositionStore{conn: conn, logger: logger.With(slog.String("component", "position_store"))}
}

// Fetch returns the option exposures valued on valuationDate (YYYY-MM-DD) for the
// given strategies
func (s *PositionStore) Fetch(ctx context.Context, valuationDate string, strategyIDs []string) ([]domain.PositionRow, error) {
	if len(strategyIDs) == 0 {
		return nil, apperrors.NewAppValidationError("no strategy ids configured")
	}

	query := PositionsQuery(len(strategyIDs))
	args := make([]any, 0, len(strategyIDs)+1)
	args = append(args, valuationDate)
	for _, id := range strategyIDs {
		args = append(args, id)
	}

	s.logger.InfoContext(ctx, "querying positions",
		slog.String("valuation_date", valuationDate),
		slog.Int("strategies", len(strategyIDs)))
	s.logger.DebugContext(ctx, "positions query", slog.String("sql", query))

	var out []domain.PositionRow
	err := s.conn.WithConn(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return apperrors.NewStorageError("positions query failed", err)
		}
		defer rows.Close()

		for rows.Next() {
			row, err := scanPosition(rows)
			if err != nil {
				return err
			}
			out = append(out, row)
		}
		if err := rows.Err(); err != nil {
			return apperrors.NewStorageError("positions query failed", err)
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch positions", slog.String("error", err.Error()))
		return nil, err
	}

	if len(out) == 0 {
		s.logger.WarnContext(ctx, "positions query returned no rows")
	} else {
		s.logger.InfoContext(ctx, "positions fetched", slog.Int("rows", len(out)))
	}
	return out, nil
}

func scanPosition(rows *sql.Rows) (domain.PositionRow, error) {
	var (
		strategyID, exposure, instrumentType, optionType sql.NullString
		endDate                                          any
		marketPrice, futureValue, strike, rfRate         sql.NullFloat64
	)
	if err := rows.Scan(&strategyID, &exposure, &endDate, &marketPrice, &instrumentType,
		&futureValue, &optionType, &strike, &rfRate); err != nil {
		return domain.PositionRow{}, apperrors.NewParsingError("failed to scan position row", err)
	}

	end, err := toTime(endDate)
	if err != nil {
		return domain.PositionRow{}, apperrors.NewParsingError("invalid end_date", err).
			WithContext("exposure", exposure.String)
	}

	return domain.PositionRow{
		StrategyID:     strategyID.String,
		Exposure:       exposure.String,
		EndDate:        end,
		MarketPrice:    nullFloat(marketPrice),
		InstrumentType: instrumentType.String,
		FutureValue:    nullFloat(futureValue),
		OptionType:     domain.OptionType(optionType.String),
		Strike:         nullFloat(strike),
		RFRate:         nullFloat(rfRate),
	}, nil
}
