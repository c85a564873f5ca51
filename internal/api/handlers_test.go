package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jzfdigital/atendebot/internal/messaging"
	"github.com/jzfdigital/atendebot/internal/models"
)

// mockProcessor records processed events.
type mockProcessor struct {
	participants []string
	events       []models.InboundEvent
	err          error
}

func (m *mockProcessor) ProcessEvent(ctx context.Context, participantID string, ev models.InboundEvent) error {
	m.participants = append(m.participants, participantID)
	m.events = append(m.events, ev)
	return m.err
}

func newTestServer(t *testing.T) (*Server, *mockProcessor) {
	t.Helper()
	proc := &mockProcessor{}
	srv, err := NewServer(proc, messaging.NewMockService(), WithVerifyToken("secret"))
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	return srv, proc
}

func TestVerifyHandler_Success(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	srv.webhookHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if string(body) != "12345" {
		t.Errorf("expected challenge echoed, got %q", body)
	}
}

func TestVerifyHandler_WrongToken(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	srv.webhookHandler(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestVerifyHandler_WrongMode(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=unsubscribe&hub.verify_token=secret", nil)
	w := httptest.NewRecorder()
	srv.webhookHandler(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestDeliveryHandler_DispatchesEvents(t *testing.T) {
	srv, proc := newTestServer(t)

	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"value": {"messages": [
			{"from": "+55 11 99999-9999", "type": "text", "text": {"body": "olá"}}
		]}}]}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.webhookHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(proc.events) != 1 {
		t.Fatalf("expected 1 dispatched event, got %d", len(proc.events))
	}
	if proc.participants[0] != "5511999999999" {
		t.Errorf("expected canonicalized participant, got %s", proc.participants[0])
	}
	if proc.events[0].Kind != models.EventText || proc.events[0].Text != "olá" {
		t.Errorf("unexpected event: %+v", proc.events[0])
	}
}

func TestDeliveryHandler_ProcessorErrorStillAcknowledges(t *testing.T) {
	srv, proc := newTestServer(t)
	proc.err = errors.New("turn failed")

	payload := `{"entry": [{"changes": [{"value": {"messages": [
		{"from": "5511999999999", "type": "text", "text": {"body": "oi"}}
	]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.webhookHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("processing failures must still be acknowledged, got %d", w.Code)
	}
}

func TestDeliveryHandler_InvalidSenderSkipped(t *testing.T) {
	srv, proc := newTestServer(t)

	payload := `{"entry": [{"changes": [{"value": {"messages": [
		{"from": "bogus", "type": "text", "text": {"body": "oi"}}
	]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.webhookHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if len(proc.events) != 0 {
		t.Errorf("expected no dispatched events, got %d", len(proc.events))
	}
}

func TestDeliveryHandler_InvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.webhookHandler(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestWebhookHandler_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/webhook", nil)
	w := httptest.NewRecorder()
	srv.webhookHandler(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.healthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestNewServer_RequiresVerifyToken(t *testing.T) {
	t.Setenv("VERIFY_TOKEN", "")
	if _, err := NewServer(&mockProcessor{}, messaging.NewMockService()); err == nil {
		t.Error("expected error without verify token")
	}
}
