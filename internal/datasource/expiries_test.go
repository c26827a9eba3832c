package datasource

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optpricer/internal/shared/testutil"
	"optpricer/pkg/contracts/domain"
)

func TestExpiriesQuery(t *testing.T) {
	q := ExpiriesQuery(3)

	assert.Equal(t, 2, strings.Count(q, "UNION ALL"))
	assert.Equal(t, 3, strings.Count(q, "FROM settles.instruments"))
	assert.Contains(t, q, "instrument_key LIKE $1")
	assert.Contains(t, q, "instrument_key LIKE $3")
	assert.Equal(t, 3, strings.Count(q, "properties['ExpirationDate'] > $4"))
	assert.True(t, strings.HasSuffix(q, "ORDER BY option_expiry"))
	assert.Contains(t, q, "properties['UnderlyingInstrument']['instrument_key'] AS future_key")
}

func TestExpiriesBetweenQuery(t *testing.T) {
	assert.Contains(t, ExpiriesBetweenQuery, "BETWEEN $2 AND $3")
	assert.Contains(t, ExpiriesBetweenQuery, "properties['UnderlyingInstrument']['ExpirationDate'] IS NOT NULL")
	assert.Equal(t, "TFO ______ P%", OptionPattern("TFO"))
}

func TestQueryExpiries(t *testing.T) {
	dsn := newTestDB(t,
		`CREATE TABLE expiries (future_key TEXT, future_expiry, option_expiry)`,
		`INSERT INTO expiries VALUES
			('B 202512 F', '2025-10-31', '2025-10-27'),
			('TFO 202508 F', 1753660800000, '2025-07-25T00:00:00Z'),
			(NULL, '2025-10-31', '2025-10-27'),
			('LO 202509 F', NULL, '2025-08-15')`,
	)
	c := NewConnector("crate", testDriver, dsn, nil)

	var (
		records []domain.ExpiryRecord
		dropped int
	)
	err := c.WithConn(context.Background(), func(ctx context.Context, db *sql.DB) error {
		var err error
		records, dropped, err = queryExpiries(ctx, db,
			`SELECT future_key, future_expiry, option_expiry FROM expiries ORDER BY rowid`)
		return err
	})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, 2, dropped)

	assert.Equal(t, "B 202512 F", records[0].FutureKey)
	assert.Equal(t, testutil.MustDate("2025-10-31"), records[0].FutureExpiry)
	assert.Equal(t, testutil.MustDate("2025-10-27"), records[0].OptionExpiry)

	assert.Equal(t, testutil.MustDate("2025-07-28"), records[1].FutureExpiry, "epoch milliseconds")
	assert.Equal(t, testutil.MustDate("2025-07-25"), records[1].OptionExpiry)
}

func TestExpiryStore_FetchForMappingSkipsFailures(t *testing.T) {
	// SQLite cannot evaluate object subscripts, so every per-symbol query fails
	dsn := newTestDB(t)
	logger, logs := testutil.NewTestLogger(t)
	store := NewExpiryStore(NewConnector("crate", testDriver, dsn, logger), logger)

	mapping := []domain.MappingRow{
		{OptSymbol: "TFO", Exchange: "ICE"},
		{OptSymbol: "TFO", Exchange: "ICE"},
		{OptSymbol: "B", Exchange: "ICE"},
	}
	out, err := store.FetchForMapping(context.Background(), mapping, "2025-07-21", "2025-12-31")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Len(t, logs.GetRecordsByMessage("failed to fetch expiries for symbol"), 2)
	assert.Empty(t, logs.GetRecordsByLevel(slog.LevelError))
}

func TestExpiryStore_FetchRequiresPatterns(t *testing.T) {
	store := NewExpiryStore(NewConnector("crate", testDriver, newTestDB(t), nil), nil)
	_, err := store.Fetch(context.Background(), "2025-07-21", nil)
	assert.Error(t, err)
}

func TestUniqueMappings(t *testing.T) {
	in := []domain.MappingRow{
		{OptSymbol: "TFO", Exchange: "ICE", Scheme: "European"},
		{OptSymbol: "TFO", Exchange: "EEX"},
		{OptSymbol: "TFO", Exchange: "ICE", Scheme: "American"},
		{OptSymbol: "", Exchange: "ICE"},
	}
	out := uniqueMappings(in)
	require.Len(t, out, 2)
	assert.Equal(t, "European", out[0].Scheme, "first occurrence wins")
	assert.Equal(t, "EEX", out[1].Exchange)
}
