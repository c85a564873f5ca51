package messaging

import (
	"encoding/json"
	"testing"

	"github.com/jzfdigital/atendebot/internal/models"
)

func envelopeWith(msg WebhookMessage) WebhookPayload {
	return WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []WebhookEntry{
			{Changes: []WebhookChange{{Value: WebhookValue{Messages: []WebhookMessage{msg}}}}},
		},
	}
}

func TestDecodeWebhook_TextMessage(t *testing.T) {
	payload := envelopeWith(WebhookMessage{
		From: "5511999999999",
		Type: "text",
		Text: &WebhookText{Body: "olá"},
	})

	inbound := DecodeWebhook(payload)
	if len(inbound) != 1 {
		t.Fatalf("expected 1 event, got %d", len(inbound))
	}
	if inbound[0].Participant != "5511999999999" {
		t.Errorf("unexpected participant: %s", inbound[0].Participant)
	}
	ev := inbound[0].Event
	if ev.Kind != models.EventText || ev.Text != "olá" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestDecodeWebhook_ButtonReply(t *testing.T) {
	payload := envelopeWith(WebhookMessage{
		From:        "5511999999999",
		Type:        "interactive",
		Interactive: &WebhookInteractive{Type: "button_reply", ButtonReply: &WebhookButtonReply{ID: "SCHEDULING_SERVICE::1", Title: "📅 Agendar Reunião"}},
	})

	inbound := DecodeWebhook(payload)
	if len(inbound) != 1 {
		t.Fatalf("expected 1 event, got %d", len(inbound))
	}
	ev := inbound[0].Event
	if ev.Kind != models.EventOption || ev.TargetState != models.StateSchedulingService || ev.OptionIndex != 1 {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestDecodeWebhook_FollowUpButton(t *testing.T) {
	payload := envelopeWith(WebhookMessage{
		From:        "5511999999999",
		Type:        "interactive",
		Interactive: &WebhookInteractive{Type: "button_reply", ButtonReply: &WebhookButtonReply{ID: models.FollowUpTokenPrefix + "Qual o custo?"}},
	})

	inbound := DecodeWebhook(payload)
	if len(inbound) != 1 {
		t.Fatalf("expected 1 event, got %d", len(inbound))
	}
	ev := inbound[0].Event
	if ev.Kind != models.EventText || ev.Text != "Qual o custo?" {
		t.Errorf("expected follow-up re-injected as text, got %+v", ev)
	}
}

func TestDecodeWebhook_MalformedTokenRecoversToGreeting(t *testing.T) {
	payload := envelopeWith(WebhookMessage{
		From:        "5511999999999",
		Type:        "interactive",
		Interactive: &WebhookInteractive{Type: "button_reply", ButtonReply: &WebhookButtonReply{ID: "garbage"}},
	})

	inbound := DecodeWebhook(payload)
	if len(inbound) != 1 {
		t.Fatalf("expected 1 event, got %d", len(inbound))
	}
	ev := inbound[0].Event
	if ev.Kind != models.EventOption || ev.TargetState != models.StateGreeting {
		t.Errorf("expected greeting recovery event, got %+v", ev)
	}
}

func TestDecodeWebhook_IgnoresUnsupported(t *testing.T) {
	payload := envelopeWith(WebhookMessage{From: "5511999999999", Type: "image"})
	if inbound := DecodeWebhook(payload); len(inbound) != 0 {
		t.Errorf("expected no events, got %+v", inbound)
	}

	// Status-only notifications carry no messages at all.
	empty := WebhookPayload{Entry: []WebhookEntry{{Changes: []WebhookChange{{}}}}}
	if inbound := DecodeWebhook(empty); len(inbound) != 0 {
		t.Errorf("expected no events for status notification, got %+v", inbound)
	}
}

func TestWebhookPayload_UnmarshalsCloudAPIShape(t *testing.T) {
	raw := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "123",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"messages": [{
						"from": "5511999999999",
						"id": "wamid.xyz",
						"type": "interactive",
						"interactive": {
							"type": "button_reply",
							"button_reply": {"id": "GREETING::1", "title": "English"}
						}
					}]
				}
			}]
		}]
	}`

	var payload WebhookPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	inbound := DecodeWebhook(payload)
	if len(inbound) != 1 {
		t.Fatalf("expected 1 event, got %d", len(inbound))
	}
	if ev := inbound[0].Event; ev.TargetState != models.StateGreeting || ev.OptionIndex != 1 {
		t.Errorf("unexpected event: %+v", ev)
	}
}
