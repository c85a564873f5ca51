package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jzfdigital/atendebot/internal/messaging"
	"github.com/jzfdigital/atendebot/internal/models"
)

// webhookHandler serves both halves of the Cloud API webhook contract: the
// GET verification handshake and POST message delivery.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.verifyHandler(w, r)
	case http.MethodPost:
		s.deliveryHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyHandler answers Meta's subscription handshake: echo hub.challenge
// when the mode and token match, refuse otherwise.
func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != s.verifyToken {
		slog.Warn("Server.verifyHandler: verification refused", "mode", mode)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	slog.Info("Server.verifyHandler: webhook verified")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(challenge)); err != nil {
		slog.Error("Server.verifyHandler: failed to write challenge", "error", err)
	}
}

// deliveryHandler decodes inbound messages and runs one engine turn per
// event. Processing failures are logged but still acknowledged with 200 so
// the Cloud API does not redeliver a turn that already committed state.
func (s *Server) deliveryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	var payload messaging.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.deliveryHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	for _, in := range messaging.DecodeWebhook(payload) {
		participant, err := s.msgService.ValidateAndCanonicalizeRecipient(in.Participant)
		if err != nil {
			slog.Warn("Server.deliveryHandler: invalid sender, skipping", "error", err)
			continue
		}
		if err := s.engine.ProcessEvent(r.Context(), participant, in.Event); err != nil {
			slog.Error("Server.deliveryHandler: failed to process event", "error", err, "participantID", participant)
		}
	}

	w.WriteHeader(http.StatusOK)
}

// healthHandler provides a health check endpoint for monitoring.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
