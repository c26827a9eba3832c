package datasource

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// testDriver is SQLite with the position and settles schemas attached next to
// the main database file, so store queries run unchanged
const testDriver = "sqlite3_optpricer"

func init() {
	sql.Register(testDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			main := conn.GetFilename("main")
			for _, schema := range []string{"position", "settles"} {
				if _, err := conn.Exec("ATTACH DATABASE '"+main+"."+schema+"' AS "+schema, nil); err != nil {
					return err
				}
			}
			return nil
		},
	})
}

func newTestDB(t *testing.T, statements ...string) string {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "store.db")
	db, err := sql.Open(testDriver, dsn)
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	for _, stmt := range statements {
		_, err := db.ExecContext(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}
	return dsn
}
