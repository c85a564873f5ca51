// Package models defines the core data structures for atendebot.
//
// It includes dialogue states, flow steps, session records and inbound/outbound
// message types, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// DialogueState identifies a node in the static dialogue graph.
type DialogueState string

// Dialogue states. The string values travel inside quick-reply tokens, so they
// are wire format and must not change.
const (
	StateLanguageSelect            DialogueState = "LANGUAGE_SELECT"
	StateGreeting                  DialogueState = "GREETING"
	StateAIAssistantSelectDept     DialogueState = "AI_ASSISTANT_SELECT_DEPT"
	StateAIAssistantChatting       DialogueState = "AI_ASSISTANT_CHATTING"
	StateSchedulingService         DialogueState = "SCHEDULING_SERVICE"
	StateSchedulingClientType      DialogueState = "SCHEDULING_CLIENT_TYPE"
	StateSchedulingMeetingType     DialogueState = "SCHEDULING_MEETING_TYPE"
	StateSchedulingResponsibleName DialogueState = "SCHEDULING_RESPONSIBLE_NAME"
	StateSchedulingCompanyName     DialogueState = "SCHEDULING_COMPANY_NAME"
	StateSchedulingContactInfo     DialogueState = "SCHEDULING_CONTACT_INFO"
	StateSchedulingSummary         DialogueState = "SCHEDULING_SUMMARY"
	StateSchedulingConfirmed       DialogueState = "SCHEDULING_CONFIRMED"
	StateAttendantSelect           DialogueState = "ATTENDANT_SELECT"
	StateAttendantTransfer         DialogueState = "ATTENDANT_TRANSFER"
	StateEnd                       DialogueState = "END"
)

// TextKey references an entry in a per-language text table.
type TextKey string

// ContextKey names an accumulated context field captured from option payloads.
type ContextKey string

// Context field keys populated by option payloads.
const (
	ContextKeyLanguage      ContextKey = "language"
	ContextKeyDepartment    ContextKey = "department"
	ContextKeyDepartmentEn  ContextKey = "departmentEn"
	ContextKeyService       ContextKey = "service"
	ContextKeyServiceEn     ContextKey = "serviceEn"
	ContextKeyClientType    ContextKey = "clientType"
	ContextKeyClientTypeEn  ContextKey = "clientTypeEn"
	ContextKeyMeetingType   ContextKey = "meetingType"
	ContextKeyMeetingTypeEn ContextKey = "meetingTypeEn"
)

// Transport-imposed limits for quick replies (WhatsApp Cloud API interactive
// button messages). Exceeding input is truncated silently.
const (
	MaxReplyButtons      = 3
	MaxButtonTitleLength = 20
	MaxButtonIDLength    = 256
	MaxFollowUpQuestions = 2
)

// Error variables for better error handling and testability.
var (
	ErrMalformedToken = errors.New("malformed option token")
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
)

// Option is a selectable choice attached to a FlowStep. Choosing it moves the
// session to NextState and merges Payload into the accumulated context.
type Option struct {
	TextKey   TextKey               // label resolved against the language table
	Text      string                // raw literal label, used when TextKey is empty
	NextState DialogueState         // target state when chosen
	Payload   map[ContextKey]string // context fields merged on selection
}

// FlowStep describes one node of the dialogue graph: how to prompt the user
// and how the conversation advances from here.
//
// A step advances through exactly one of non-empty Options, RequiresText, or
// an unconditional NextState; the combination RequiresText+NextState is valid
// and means "capture text, then advance". A step with none of these renders
// and stays put (e.g. attendant transfer).
type FlowStep struct {
	TextKey      TextKey // prompt resolved against the language table
	Text         string  // raw literal prompt, used when TextKey is empty
	Options      []Option
	RequiresText bool          // free-text reply expected
	NextState    DialogueState // unconditional successor
}

// Context holds the facts accumulated from a participant across turns within
// one conversation attempt.
type Context struct {
	Language          string                   `json:"language,omitempty"`
	Fields            map[ContextKey]string    `json:"fields,omitempty"`
	History           map[DialogueState]string `json:"history,omitempty"`
	LastInput         string                   `json:"last_input,omitempty"`
	SystemInstruction string                   `json:"system_instruction,omitempty"`
}

// NewContext returns an empty context with initialized maps.
func NewContext() Context {
	return Context{
		Fields:  make(map[ContextKey]string),
		History: make(map[DialogueState]string),
	}
}

// Merge copies payload fields into the context. The language field is kept
// separately because context resets preserve it.
func (c *Context) Merge(payload map[ContextKey]string) {
	for k, v := range payload {
		if k == ContextKeyLanguage {
			c.Language = v
			continue
		}
		if c.Fields == nil {
			c.Fields = make(map[ContextKey]string)
		}
		c.Fields[k] = v
	}
}

// Field returns an accumulated context field, or "" when absent.
func (c Context) Field(key ContextKey) string {
	if c.Fields == nil {
		return ""
	}
	return c.Fields[key]
}

// AIMessage represents a single role-tagged entry in the AI exchange history.
type AIMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AI exchange roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is the per-participant conversational record. It is created on the
// first inbound event from a new participant and mutated exclusively by the
// turn engine, once per processed event.
type Session struct {
	ParticipantID string        `json:"participant_id"`
	CurrentState  DialogueState `json:"current_state"`
	Context       Context       `json:"context"`
	AIHistory     []AIMessage   `json:"ai_history,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewSession returns a fresh session positioned at language selection.
func NewSession(participantID string) Session {
	now := time.Now()
	return Session{
		ParticipantID: participantID,
		CurrentState:  StateLanguageSelect,
		Context:       NewContext(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// EventKind distinguishes decoded inbound events.
type EventKind string

const (
	// EventText carries literal free text typed by the participant.
	EventText EventKind = "text"
	// EventOption carries a decoded quick-reply selection.
	EventOption EventKind = "option"
)

// InboundEvent is one decoded inbound transport event. Exactly one turn is
// processed per event.
type InboundEvent struct {
	Kind        EventKind
	Text        string        // free text, for EventText
	TargetState DialogueState // decoded token target, for EventOption
	OptionIndex int           // decoded option position, for EventOption
}

// TextEvent builds a free-text inbound event.
func TextEvent(text string) InboundEvent {
	return InboundEvent{Kind: EventText, Text: text}
}

// OptionEvent builds a chosen-option inbound event.
func OptionEvent(target DialogueState, index int) InboundEvent {
	return InboundEvent{Kind: EventOption, TargetState: target, OptionIndex: index}
}

// ReplyOption is a rendered, token-carrying option ready for transport
// encoding.
type ReplyOption struct {
	Label string
	Token string
}

// OutboundMessage is a literal message produced by the renderer: body text
// plus zero or more quick-reply options.
type OutboundMessage struct {
	Body    string
	Options []ReplyOption
}

// APIStatus represents the status of a webhook API response.
type APIStatus string

const (
	// APIStatusOK indicates a request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates a request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON body returned by HTTP endpoints.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Success creates a successful API response.
func Success() APIResponse {
	return APIResponse{Status: string(APIStatusOK)}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
