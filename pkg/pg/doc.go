// Package pg bootstraps the PostgreSQL layer for the credential store: a
// pgx/v5 connection pool with retrying startup, goose schema migrations for
// the auth tables, a health check, and error classification helpers used by
// the storage implementation.
package pg
