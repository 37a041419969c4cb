package domain

import "context"

// Database defines lifecycle operations for the underlying database.
// SQLite and Postgres each own their schema strategy, so either can back
// the repositories.
type Database interface {
	Migrate(ctx context.Context) error
	// Ping reports whether the database is reachable. Used by health checks.
	Ping(ctx context.Context) error
	Close() error
}
