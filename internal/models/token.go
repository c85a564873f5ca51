// Package models defines the quick-reply token encoding.
//
// A token is the opaque identifier embedded in an outbound quick reply. The
// stateless transport hands it back unmodified when the participant taps the
// reply, letting the engine recover which option was chosen from which step.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// tokenSeparator joins the target state and option index in a token.
	tokenSeparator = "::"
	// FollowUpTokenPrefix marks tokens that carry an AI-generated follow-up
	// question instead of a static graph transition. The remainder of the
	// token is the literal question text, re-injected as free text.
	FollowUpTokenPrefix = "AI_PROMPT--"
	// maxFollowUpTextLength bounds the question text embedded in a token.
	maxFollowUpTextLength = 200
)

// EncodeOptionToken builds the `<targetState>::<index>` token for a static
// graph option, bounded to the transport's identifier limit.
func EncodeOptionToken(target DialogueState, index int) string {
	token := fmt.Sprintf("%s%s%d", target, tokenSeparator, index)
	return truncate(token, MaxButtonIDLength)
}

// EncodeFollowUpToken wraps an AI-generated follow-up question so it can be
// offered as a quick reply and recovered as free text on the next turn.
func EncodeFollowUpToken(question string) string {
	return FollowUpTokenPrefix + truncate(question, maxFollowUpTextLength)
}

// DecodeToken parses a quick-reply identifier back into an inbound event.
// Follow-up tokens become free-text events carrying the embedded question;
// static tokens become chosen-option events. Returns ErrMalformedToken when
// the identifier matches neither shape.
func DecodeToken(token string) (InboundEvent, error) {
	if text, ok := strings.CutPrefix(token, FollowUpTokenPrefix); ok {
		return TextEvent(text), nil
	}

	target, indexStr, found := strings.Cut(token, tokenSeparator)
	if !found || target == "" {
		return InboundEvent{}, fmt.Errorf("%w: %q", ErrMalformedToken, token)
	}
	index, err := strconv.Atoi(indexStr)
	if err != nil || index < 0 {
		return InboundEvent{}, fmt.Errorf("%w: bad index in %q", ErrMalformedToken, token)
	}
	return OptionEvent(DialogueState(target), index), nil
}

// truncate bounds s to at most n characters, never splitting a rune. Labels
// carry emoji, so this counts runes rather than bytes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// TruncateLabel bounds a quick-reply title to the transport's limit.
func TruncateLabel(label string) string {
	return truncate(label, MaxButtonTitleLength)
}
