// Package messaging provides pluggable WhatsApp message delivery for
// atendebot, with a Meta Cloud API client as the primary backend and a
// degraded Twilio backend.
package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/jzfdigital/atendebot/internal/models"
)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Returns the canonicalized recipient and an error if
	// validation fails. This allows each backend to implement its own
	// recipient rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a plain text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendQuickReplies sends a message with tappable quick replies. Each
	// option's token comes back verbatim as the reply identifier when tapped.
	SendQuickReplies(ctx context.Context, to string, body string, options []models.ReplyOption) error
}

// canonicalizeRecipient strips WhatsApp addressing decoration down to the
// bare phone number in international format without the plus sign, which is
// what the Cloud API expects in the "to" field.
func canonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	s := strings.TrimPrefix(recipient, "whatsapp:")
	s = strings.TrimPrefix(s, "+")
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, s)
	if len(s) < 5 || len(s) > 15 {
		return "", fmt.Errorf("invalid recipient phone number %q", recipient)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("invalid recipient phone number %q", recipient)
		}
	}
	return s, nil
}

// MockService records outbound messages for tests.
type MockService struct {
	Messages     []SentMessage
	QuickReplies []SentQuickReply

	// SendErr, when set, is returned by every send call.
	SendErr error
}

// SentMessage is one recorded plain text send.
type SentMessage struct {
	To   string
	Body string
}

// SentQuickReply is one recorded quick-reply send.
type SentQuickReply struct {
	To      string
	Body    string
	Options []models.ReplyOption
}

func NewMockService() *MockService {
	return &MockService{}
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizeRecipient(recipient)
}

func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Messages = append(m.Messages, SentMessage{To: to, Body: body})
	return nil
}

func (m *MockService) SendQuickReplies(ctx context.Context, to string, body string, options []models.ReplyOption) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.QuickReplies = append(m.QuickReplies, SentQuickReply{To: to, Body: body, Options: options})
	return nil
}
