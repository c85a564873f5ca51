// Package session provides storage backends for participant sessions.
//
// This file implements the SQLite-backed session store.
package session

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/jzfdigital/atendebot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite session store. The DSN is a file path;
// its directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite session store ready", "path", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

// Get returns the participant's session, creating (and persisting) a fresh
// one on first contact.
func (s *SQLiteStore) Get(participantID string) (models.Session, error) {
	row := s.db.QueryRow(
		`SELECT participant_id, current_state, context, ai_history, created_at, updated_at FROM sessions WHERE participant_id = ?`,
		participantID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		sess = models.NewSession(participantID)
		if err := s.Put(sess); err != nil {
			return models.Session{}, err
		}
		slog.Debug("SQLiteStore.Get: created new session", "participantID", participantID)
		return sess, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.Get failed", "error", err, "participantID", participantID)
		return models.Session{}, fmt.Errorf("failed to load session for %s: %w", participantID, err)
	}
	return sess, nil
}

// Put stores or replaces the participant's session.
func (s *SQLiteStore) Put(sess models.Session) error {
	contextJSON, historyJSON, err := marshalSession(sess)
	if err != nil {
		slog.Error("SQLiteStore.Put marshal failed", "error", err, "participantID", sess.ParticipantID)
		return err
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO sessions (participant_id, current_state, context, ai_history, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ParticipantID, string(sess.CurrentState), contextJSON, historyJSON, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore.Put failed", "error", err, "participantID", sess.ParticipantID)
		return fmt.Errorf("failed to save session for %s: %w", sess.ParticipantID, err)
	}
	slog.Debug("SQLiteStore.Put succeeded", "participantID", sess.ParticipantID, "state", sess.CurrentState)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
