package messaging

import (
	"log/slog"

	"github.com/jzfdigital/atendebot/internal/models"
)

// WebhookPayload is the Cloud API webhook envelope. Only the message fields
// the engine consumes are mapped; status notifications and other change
// types are ignored.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	Messages []WebhookMessage `json:"messages"`
}

type WebhookMessage struct {
	From        string              `json:"from"`
	Type        string              `json:"type"`
	Text        *WebhookText        `json:"text,omitempty"`
	Interactive *WebhookInteractive `json:"interactive,omitempty"`
}

type WebhookText struct {
	Body string `json:"body"`
}

type WebhookInteractive struct {
	Type        string              `json:"type"`
	ButtonReply *WebhookButtonReply `json:"button_reply,omitempty"`
}

type WebhookButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// InboundMessage pairs a participant with the decoded event for one webhook
// message.
type InboundMessage struct {
	Participant string
	Event       models.InboundEvent
}

// DecodeWebhook flattens a webhook envelope into inbound events. Text
// messages become free-text events; tapped reply buttons are decoded from
// their token. A malformed token degrades to an option event targeting the
// greeting with an impossible index, which the engine's token validation
// recovers as a fresh start rather than an error.
func DecodeWebhook(payload WebhookPayload) []InboundMessage {
	var inbound []InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				ev, ok := decodeMessage(msg)
				if !ok {
					continue
				}
				inbound = append(inbound, InboundMessage{Participant: msg.From, Event: ev})
			}
		}
	}
	return inbound
}

func decodeMessage(msg WebhookMessage) (models.InboundEvent, bool) {
	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return models.InboundEvent{}, false
		}
		return models.TextEvent(msg.Text.Body), true
	case "interactive":
		if msg.Interactive == nil || msg.Interactive.ButtonReply == nil {
			return models.InboundEvent{}, false
		}
		ev, err := models.DecodeToken(msg.Interactive.ButtonReply.ID)
		if err != nil {
			slog.Warn("DecodeWebhook: malformed button token, recovering to greeting", "error", err, "from", msg.From)
			return models.OptionEvent(models.StateGreeting, -1), true
		}
		return ev, true
	default:
		slog.Debug("DecodeWebhook: ignoring unsupported message type", "type", msg.Type, "from", msg.From)
		return models.InboundEvent{}, false
	}
}
