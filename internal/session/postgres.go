// Package session provides storage backends for participant sessions.
//
// This file implements the PostgreSQL-backed session store.
package session

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/jzfdigital/atendebot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres session store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres session store ready")
	return &PostgresStore{db: db}, nil
}

// Get returns the participant's session, creating (and persisting) a fresh
// one on first contact.
func (s *PostgresStore) Get(participantID string) (models.Session, error) {
	row := s.db.QueryRow(
		`SELECT participant_id, current_state, context, ai_history, created_at, updated_at FROM sessions WHERE participant_id = $1`,
		participantID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		sess = models.NewSession(participantID)
		if err := s.Put(sess); err != nil {
			return models.Session{}, err
		}
		slog.Debug("PostgresStore.Get: created new session", "participantID", participantID)
		return sess, nil
	}
	if err != nil {
		slog.Error("PostgresStore.Get failed", "error", err, "participantID", participantID)
		return models.Session{}, fmt.Errorf("failed to load session for %s: %w", participantID, err)
	}
	return sess, nil
}

// Put stores or replaces the participant's session.
func (s *PostgresStore) Put(sess models.Session) error {
	contextJSON, historyJSON, err := marshalSession(sess)
	if err != nil {
		slog.Error("PostgresStore.Put marshal failed", "error", err, "participantID", sess.ParticipantID)
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (participant_id, current_state, context, ai_history, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (participant_id) DO UPDATE SET
		   current_state = EXCLUDED.current_state,
		   context = EXCLUDED.context,
		   ai_history = EXCLUDED.ai_history,
		   updated_at = EXCLUDED.updated_at`,
		sess.ParticipantID, string(sess.CurrentState), contextJSON, historyJSON, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore.Put failed", "error", err, "participantID", sess.ParticipantID)
		return fmt.Errorf("failed to save session for %s: %w", sess.ParticipantID, err)
	}
	slog.Debug("PostgresStore.Put succeeded", "participantID", sess.ParticipantID, "state", sess.CurrentState)
	return nil
}

// Close closes the Postgres connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
