// Package database provides the SQLite connection and migration runner for
// the label catalog.
//
// The catalog database is a bootstrap store: it holds the fleet a gateway
// starts with and is read once at startup. The schema is managed through
// embedded SQL migrations (see the migrations package) tracked in a
// schema_migrations table, applied one transaction per migration.
package database
