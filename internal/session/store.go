// Package session provides storage backends for participant sessions.
//
// The default backend is an in-memory map with process lifetime; SQLite and
// PostgreSQL backends implement the same contract for deployments that want
// sessions to survive a restart. The turn engine is oblivious to which
// backend is wired.
package session

import (
	"strings"

	"github.com/jzfdigital/atendebot/internal/models"
)

// Store is the session store contract.
//
// Get never fails on a missing participant: first contact deterministically
// creates a fresh session at the language-selection state. Put is a full
// replacement. Neither call does its own per-participant serialization; the
// engine holds the participant's lock across one read-modify-write turn.
type Store interface {
	Get(participantID string) (models.Session, error)
	Put(session models.Session) error
	Close() error
}

// Opts holds configuration options for database-backed stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for database-backed stores.
type Option func(*Opts)

// WithDSN sets the database DSN.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL-style DSNs and "sqlite"
// for anything else (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
