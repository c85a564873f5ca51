package flow

import (
	"log/slog"

	"github.com/jzfdigital/atendebot/internal/models"
)

// fallbackLabel replaces option labels whose text key has no entry.
// Rendering never fails; a missing entry is a content bug, not a turn error.
const fallbackLabel = "Option"

// RenderStep resolves a step's prompt and option labels against the given
// language, producing the literal outbound message. Each option carries the
// encoded token that recovers the transition on the next inbound event.
func RenderStep(step models.FlowStep, lang string, ctx models.Context) models.OutboundMessage {
	msg := models.OutboundMessage{Body: resolveText(step.TextKey, step.Text, lang, ctx)}
	for i, opt := range step.Options {
		label := resolveText(opt.TextKey, opt.Text, lang, ctx)
		if label == "" {
			label = fallbackLabel
		}
		msg.Options = append(msg.Options, models.ReplyOption{
			Label: label,
			Token: models.EncodeOptionToken(opt.NextState, i),
		})
	}
	return msg
}

// RenderText resolves a single text key for the given language and context.
func RenderText(key models.TextKey, lang string, ctx models.Context) string {
	return resolveText(key, "", lang, ctx)
}

// Language returns the context's language, defaulting so that the very first
// inbound event (before any language choice) is still renderable.
func Language(ctx models.Context) string {
	if ctx.Language != "" {
		return ctx.Language
	}
	return DefaultLanguage
}

// resolveText applies the resolution rule: a text key is looked up in the
// language table; a computed entry is invoked with the context; otherwise the
// raw literal is used verbatim. Missing entries resolve to "".
func resolveText(key models.TextKey, raw, lang string, ctx models.Context) string {
	if key == "" {
		return raw
	}
	table, ok := translations[lang]
	if !ok {
		table = translations[DefaultLanguage]
	}
	entry, ok := table[key]
	if !ok {
		slog.Warn("flow.resolveText: missing text entry", "key", key, "lang", lang)
		return ""
	}
	if entry.compute != nil {
		return entry.compute(ctx)
	}
	return entry.literal
}
