package datasource

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "optpricer/internal/errors"
)

func TestConnector_WithConn(t *testing.T) {
	dsn := newTestDB(t, `CREATE TABLE t (v INTEGER)`, `INSERT INTO t VALUES (7)`)
	c := NewConnector("test", testDriver, dsn, nil)

	var got int
	err := c.WithConn(context.Background(), func(ctx context.Context, db *sql.DB) error {
		return db.QueryRowContext(ctx, `SELECT v FROM t`).Scan(&got)
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestConnector_ReleasesOnFailure(t *testing.T) {
	dsn := newTestDB(t)
	c := NewConnector("test", testDriver, dsn, nil)

	var held *sql.DB
	boom := errors.New("boom")
	err := c.WithConn(context.Background(), func(ctx context.Context, db *sql.DB) error {
		held = db
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NotNil(t, held)
	assert.Error(t, held.PingContext(context.Background()), "connection must be closed")
}

func TestConnector_Errors(t *testing.T) {
	err := NewConnector("crate", testDriver, "", nil).WithConn(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))

	err = NewConnector("crate", "no-such-driver", "x", nil).WithConn(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}
