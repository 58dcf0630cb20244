// Package sqlite provides a SQLite-based implementation of the connection
// store and the code ledger.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. Both stores share a single database connection:
//
//   - ConnectionStore: one connection record per identity
//   - CodeLedger: hashes of every authorization code presented for exchange
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-connect/data/connections.db
package sqlite
