package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jzfdigital/atendebot/internal/models"
)

// marshalSession serializes the context and AI history columns shared by the
// SQLite and Postgres stores.
func marshalSession(sess models.Session) (string, string, error) {
	contextJSON, err := json.Marshal(sess.Context)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal session context: %w", err)
	}
	historyJSON, err := json.Marshal(sess.AIHistory)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal AI history: %w", err)
	}
	return string(contextJSON), string(historyJSON), nil
}

// scanSession reads one session row. Returns sql.ErrNoRows unchanged so
// callers can implement create-on-miss.
func scanSession(row *sql.Row) (models.Session, error) {
	var sess models.Session
	var state string
	var contextJSON, historyJSON sql.NullString
	err := row.Scan(&sess.ParticipantID, &state, &contextJSON, &historyJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return sess, err
	}
	sess.CurrentState = models.DialogueState(state)
	sess.Context = models.NewContext()
	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &sess.Context); err != nil {
			slog.Error("session scan: context unmarshal failed", "error", err, "participantID", sess.ParticipantID)
			// Continue with an empty context rather than failing the turn.
			sess.Context = models.NewContext()
		}
	}
	if historyJSON.Valid && historyJSON.String != "" {
		if err := json.Unmarshal([]byte(historyJSON.String), &sess.AIHistory); err != nil {
			slog.Error("session scan: AI history unmarshal failed", "error", err, "participantID", sess.ParticipantID)
			sess.AIHistory = nil
		}
	}
	return sess, nil
}
