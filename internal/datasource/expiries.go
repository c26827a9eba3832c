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

const expirySelect = `SELECT DISTINCT
	properties['UnderlyingInstrument']['instrument_key'] AS future_key,
	properties['UnderlyingInstrument']['ExpirationDate'] AS future_expiry,
	properties['ExpirationDate'] AS option_expiry
FROM settles.instruments`

// ExpiriesQuery returns one SELECT per pattern joined with UNION ALL. Pattern i
// binds to $i+1 and the as-of date to $len(patterns)+1.
func ExpiriesQuery(patterns int) string {
	datePlaceholder := fmt.Sprintf("$%d", patterns+1)
	parts := make([]string, patterns)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s\nWHERE instrument_key LIKE $%d\n\tAND properties['ExpirationDate'] > %s",
			expirySelect, i+1, datePlaceholder)
	}
	return strings.Join(parts, "\nUNION ALL\n") + "\nORDER BY option_expiry"
}

// ExpiriesBetweenQuery returns the per-symbol query used for mapping exports:
// $1 pattern, $2 and $3 the inclusive date range
const ExpiriesBetweenQuery = expirySelect + `
WHERE instrument_key LIKE $1
	AND properties['ExpirationDate'] BETWEEN $2 AND $3
	AND properties['UnderlyingInstrument']['ExpirationDate'] IS NOT NULL
ORDER BY option_expiry`

// OptionPattern returns the instrument key LIKE pattern for puts on symbol
func OptionPattern(symbol string) string {
	return symbol + " ______ P%"
}

// ExpiryStore reads option expiry metadata from the market data store
type ExpiryStore struct {
	conn   *Connector
	logger *slog.Logger
}

// NewExpiryStore creates an expiry store over conn
func NewExpiryStore(conn *Connector, logger *slog.Logger) *ExpiryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpiryStore{conn: conn, logger: logger.With(slog.String("component", "expiry_store"))}
}

// Fetch returns the expiries after asOf (YYYY-MM-DD) for instruments matching any
// pattern, ordered by option expiry. Rows with a missing column are dropped.
func (s *ExpiryStore) Fetch(ctx context.Context, asOf string, patterns []string) ([]domain.ExpiryRecord, error) {
	if len(patterns) == 0 {
		return nil, apperrors.NewAppValidationError("no expiry patterns configured")
	}

	query := ExpiriesQuery(len(patterns))
	args := make([]any, 0, len(patterns)+1)
	for _, p := range patterns {
		args = append(args, p)
	}
	args = append(args, asOf)

	s.logger.InfoContext(ctx, "querying option expiries",
		slog.String("as_of", asOf),
		slog.Any("patterns", patterns))

	var out []domain.ExpiryRecord
	var dropped int
	err := s.conn.WithConn(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		out, dropped, err = queryExpiries(ctx, db, query, args...)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch option expiries", slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.InfoContext(ctx, "option expiries fetched",
		slog.Int("rows", len(out)),
		slog.Int("dropped_incomplete", dropped))
	return out, nil
}

// FetchForMapping queries expiries in [start, end] once per unique
// (opt_symbol, exchange) of mapping and annotates each record with its mapping
// row. A failing symbol is logged and skipped.
func (s *ExpiryStore) FetchForMapping(ctx context.Context, mapping []domain.MappingRow, start, end string) ([]domain.MappedExpiry, error) {
	unique := uniqueMappings(mapping)

	s.logger.InfoContext(ctx, "querying expiries for mapping",
		slog.Int("symbols", len(unique)),
		slog.String("start", start),
		slog.String("end", end))

	var out []domain.MappedExpiry
	err := s.conn.WithConn(ctx, func(ctx context.Context, db *sql.DB) error {
		for _, m := range unique {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, _, err := queryExpiries(ctx, db, ExpiriesBetweenQuery, OptionPattern(m.OptSymbol), start, end)
			if err != nil {
				s.logger.WarnContext(ctx, "failed to fetch expiries for symbol",
					slog.String("opt_symbol", m.OptSymbol),
					slog.String("exchange", m.Exchange),
					slog.String("error", err.Error()))
				continue
			}
			for _, r := range records {
				out = append(out, domain.MappedExpiry{ExpiryRecord: r, MappingRow: m})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "mapping expiries fetched", slog.Int("rows", len(out)))
	return out, nil
}

func uniqueMappings(mapping []domain.MappingRow) []domain.MappingRow {
	type key struct{ symbol, exchange string }
	seen := make(map[key]bool, len(mapping))
	out := make([]domain.MappingRow, 0, len(mapping))
	for _, m := range mapping {
		k := key{m.OptSymbol, m.Exchange}
		if m.OptSymbol == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, m)
	}
	return out
}

// queryExpiries runs a query returning (future_key, future_expiry, option_expiry)
// and returns the complete rows plus the number of rows dropped for nulls
func queryExpiries(ctx context.Context, db *sql.DB, query string, args ...any) ([]domain.ExpiryRecord, int, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.NewStorageError("expiry query failed", err)
	}
	defer rows.Close()

	var (
		out     []domain.ExpiryRecord
		dropped int
	)
	for rows.Next() {
		var (
			futureKey                  sql.NullString
			futureExpiry, optionExpiry any
		)
		if err := rows.Scan(&futureKey, &futureExpiry, &optionExpiry); err != nil {
			return nil, 0, apperrors.NewParsingError("failed to scan expiry row", err)
		}

		fe, err := toTime(futureExpiry)
		if err != nil {
			return nil, 0, apperrors.NewParsingError("invalid future_expiry", err)
		}
		oe, err := toTime(optionExpiry)
		if err != nil {
			return nil, 0, apperrors.NewParsingError("invalid option_expiry", err)
		}
		if !futureKey.Valid || futureKey.String == "" || fe == nil || oe == nil {
			dropped++
			continue
		}

		out = append(out, domain.ExpiryRecord{
			FutureKey:    futureKey.String,
			FutureExpiry: *fe,
			OptionExpiry: *oe,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.NewStorageError("expiry query failed", err)
	}
	return out, dropped, nil
}
