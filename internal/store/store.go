// Package store provides storage backends for CrewDesk.
//
// It persists jobs, back-office entities, ledger credentials, and the entity
// map in PostgreSQL or SQLite behind a common Store interface.
package store

import "strings"

// DSN type constants returned by DetectDSNType.
const (
	DSNTypePostgres = "postgres"
	DSNTypeSQLite   = "sqlite"
)

// DefaultMaxAttempts bounds how many executions a job gets before it is FAILED.
const DefaultMaxAttempts = 3

// Opts holds configuration applied by Option functions.
type Opts struct {
	DSN         string
	MaxAttempts int
}

// Option configures a store constructor.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithMaxAttempts overrides the per-job execution budget.
func WithMaxAttempts(n int) Option {
	return func(o *Opts) {
		if n > 0 {
			o.MaxAttempts = n
		}
	}
}

// DetectDSNType classifies a DSN as Postgres or SQLite. Anything that does not
// look like a Postgres connection string is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return DSNTypePostgres
	}
	return DSNTypeSQLite
}

// Open builds the backend matching the DSN type. Extra options are applied
// after the DSN, so callers can still pass WithMaxAttempts and friends.
func Open(dsn string, opts ...Option) (Store, error) {
	combined := append([]Option{WithSQLiteDSN(dsn)}, opts...)
	if DetectDSNType(dsn) == DSNTypePostgres {
		combined[0] = WithPostgresDSN(dsn)
		return NewPostgresStore(combined...)
	}
	return NewSQLiteStore(combined...)
}
