package datasource

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	apperrors "optpricer/internal/errors"
)

// Connector opens short-lived database connections
type Connector struct {
	name   string
	driver string
	dsn    string
	logger *slog.Logger
}

// NewConnector creates a connector. name labels log lines ("back_office", "crate").
func NewConnector(name, driver, dsn string, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		name:   name,
		driver: driver,
		dsn:    dsn,
		logger: logger.With(slog.String("component", "connector"), slog.String("database", name)),
	}
}

// WithConn opens a connection, runs fn and closes the connection whatever fn returns
func (c *Connector) WithConn(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	if c.dsn == "" {
		return apperrors.NewConfigError(c.name+" DSN is not configured", nil)
	}

	start := time.Now()
	db, err := sql.Open(c.driver, c.dsn)
	if err != nil {
		return apperrors.NewStorageError("failed to open "+c.name+" connection", err)
	}
	db.SetMaxOpenConns(1)
	defer func() {
		if cerr := db.Close(); cerr != nil {
			c.logger.WarnContext(ctx, "failed to close connection", slog.String("error", cerr.Error()))
		}
		c.logger.DebugContext(ctx, "connection released", slog.Duration("held", time.Since(start)))
	}()

	if err := db.PingContext(ctx); err != nil {
		return apperrors.NewStorageError("failed to connect to "+c.name, err)
	}
	c.logger.DebugContext(ctx, "connection opened")

	return fn(ctx, db)
}
