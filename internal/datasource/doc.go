// Package datasource reads pipeline inputs from the relational stores and from
// CSV exports.
//
// The back-office store (Postgres) holds aggregated valuations; the market data
// store (CrateDB, spoken to over the Postgres wire protocol) holds instrument
// metadata and settlement values. Both are reached through database/sql with the
// pgx driver. A Connector opens a connection for one call and always releases it.
//
// Queries use positional $n placeholders. The driver name is injectable so the
// same code runs against SQLite in tests.
package datasource
