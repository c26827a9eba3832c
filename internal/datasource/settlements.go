package datasource

import (
	"context"
	"database/sql"
	"log/slog"

	apperrors "optpricer/internal/errors"
	"optpricer/pkg/contracts/domain"
)

// SettlementsQuery selects the settlement price of one instrument on one date:
// $1 instrument key, $2 source, $3 date
const SettlementsQuery = `SELECT instrument_key, source, date, field, label, value
FROM settles."values"
WHERE instrument_key = $1
	AND field = 'Price'
	AND label = 'Settlement'
	AND source = $2
	AND date = $3
ORDER BY date DESC`

// SettlementLookup pairs a settlement request with its instrument key
type SettlementLookup struct {
	Code   string
	Source string
}

// SettlementStore reads settlement values from the market data store
type SettlementStore struct {
	conn   *Connector
	logger *slog.Logger
}

// NewSettlementStore creates a settlement store over conn
func NewSettlementStore(conn *Connector, logger *slog.Logger) *SettlementStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementStore{conn: conn, logger: logger.With(slog.String("component", "settlement_store"))}
}

// Fetch looks up the settlement of every code on tradeDate (YYYY-MM-DD). Lookups
// with an empty code or source are skipped, and a failing lookup is logged and
// skipped.
func (s *SettlementStore) Fetch(ctx context.Context, lookups []SettlementLookup, tradeDate string) ([]domain.Settlement, error) {
	s.logger.InfoContext(ctx, "querying settlements",
		slog.Int("codes", len(lookups)),
		slog.String("trade_date", tradeDate))

	var (
		out     []domain.Settlement
		skipped int
		failed  int
	)
	err := s.conn.WithConn(ctx, func(ctx context.Context, db *sql.DB) error {
		for _, l := range lookups {
			if err := ctx.Err(); err != nil {
				return err
			}
			if l.Code == "" || l.Source == "" {
				skipped++
				continue
			}
			found, err := querySettlements(ctx, db, l, tradeDate)
			if err != nil {
				failed++
				s.logger.WarnContext(ctx, "settlement lookup failed",
					slog.String("opt_symbol_code", l.Code),
					slog.String("source", l.Source),
					slog.String("error", err.Error()))
				continue
			}
			out = append(out, found...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "settlements fetched",
		slog.Int("rows", len(out)),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed))
	return out, nil
}

func querySettlements(ctx context.Context, db *sql.DB, l SettlementLookup, tradeDate string) ([]domain.Settlement, error) {
	rows, err := db.QueryContext(ctx, SettlementsQuery, l.Code, l.Source, tradeDate)
	if err != nil {
		return nil, apperrors.NewStorageError("settlement query failed", err)
	}
	defer rows.Close()

	var out []domain.Settlement
	for rows.Next() {
		var (
			key, source, field, label sql.NullString
			date                      any
			value                     sql.NullFloat64
		)
		if err := rows.Scan(&key, &source, &date, &field, &label, &value); err != nil {
			return nil, apperrors.NewParsingError("failed to scan settlement row", err)
		}
		d, err := toTime(date)
		if err != nil {
			return nil, apperrors.NewParsingError("invalid settlement date", err)
		}

		st := domain.Settlement{
			OptSymbolCode: l.Code,
			InstrumentKey: key.String,
			Source:        l.Source,
			Field:         field.String,
			Label:         label.String,
			Value:         value.Float64,
		}
		if d != nil {
			st.Date = *d
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("settlement query failed", err)
	}
	return out, nil
}
