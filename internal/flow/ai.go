package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/jzfdigital/atendebot/internal/models"
)

// converseAI handles one free-text turn inside the AI sub-flow: interstitial,
// model call, transcript commit, reply, then suggested follow-ups. Model
// failure is recovered into a localized error with a way back to the start;
// the turn never fails.
func (e *Engine) converseAI(ctx context.Context, sess *models.Session, userText string) {
	lang := Language(sess.Context)

	if err := e.msg.SendMessage(ctx, sess.ParticipantID, RenderText(keyProcessing, lang, sess.Context)); err != nil {
		slog.Error("Engine.converseAI: failed to send interstitial", "error", err, "participantID", sess.ParticipantID)
	}

	reply, err := e.ai.Converse(ctx, sess.Context.SystemInstruction, sess.AIHistory, userText)
	if err != nil {
		slog.Error("Engine.converseAI: model call failed", "error", err, "participantID", sess.ParticipantID)
		e.send(ctx, sess.ParticipantID, models.OutboundMessage{
			Body: RenderText(keyError, lang, sess.Context),
			Options: []models.ReplyOption{{
				Label: RenderText(keyBackToStart, lang, sess.Context),
				Token: models.EncodeOptionToken(models.StateGreeting, 0),
			}},
		})
		return
	}

	now := time.Now()
	sess.AIHistory = append(sess.AIHistory,
		models.AIMessage{Role: models.RoleUser, Content: userText, Timestamp: now},
		models.AIMessage{Role: models.RoleAssistant, Content: reply, Timestamp: now},
	)
	sess.UpdatedAt = now
	if err := e.sessions.Put(*sess); err != nil {
		slog.Error("Engine.converseAI: failed to persist AI history", "error", err, "participantID", sess.ParticipantID)
	}

	if err := e.msg.SendMessage(ctx, sess.ParticipantID, reply); err != nil {
		slog.Error("Engine.converseAI: failed to send reply", "error", err, "participantID", sess.ParticipantID)
	}

	e.sendFollowUps(ctx, *sess, lang, userText, reply)
}

// sendFollowUps asks the model for follow-up questions and offers them as
// quick replies, always with a return-to-start option last. Suggestion
// failures degrade to just the return option.
//
// Follow-up buttons carry the question text itself, so a tap re-enters this
// sub-flow as a free-text turn. The return option's token is validated
// against a step with no options and recovers to the greeting, which is
// exactly its target.
func (e *Engine) sendFollowUps(ctx context.Context, sess models.Session, lang string, userText, reply string) {
	var options []models.ReplyOption

	questions, err := e.ai.SuggestFollowUps(ctx, FollowUpPrompt(lang, userText, reply))
	if err != nil {
		slog.Warn("Engine.sendFollowUps: suggestion call failed, offering return only", "error", err, "participantID", sess.ParticipantID)
	}
	for _, q := range questions {
		if len(options) == models.MaxFollowUpQuestions {
			break
		}
		options = append(options, models.ReplyOption{
			Label: q,
			Token: models.EncodeFollowUpToken(q),
		})
	}

	options = append(options, models.ReplyOption{
		Label: RenderText(keyBackToStart, lang, sess.Context),
		Token: models.EncodeOptionToken(models.StateGreeting, len(options)),
	})

	if err := e.msg.SendQuickReplies(ctx, sess.ParticipantID, RenderText(keyAnythingElse, lang, sess.Context), options); err != nil {
		slog.Error("Engine.sendFollowUps: delivery failed", "error", err, "participantID", sess.ParticipantID)
	}
}
