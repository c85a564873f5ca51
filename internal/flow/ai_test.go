package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jzfdigital/atendebot/internal/models"
)

func TestConverseAI_SuccessWithFollowUps(t *testing.T) {
	ai := &mockAIClient{
		reply:     "O prazo de abertura é de 5 dias úteis.",
		followUps: []string{"Quais documentos preciso?", "Qual o custo?", "Posso acelerar?"},
	}
	engine, store, msg := newTestEngine(t, ai)
	seedSession(t, store, models.StateAIAssistantChatting, func(s *models.Session) {
		s.Context.Language = LanguagePT
		s.Context.SystemInstruction = "persona"
	})

	ev := models.TextEvent("Quanto tempo demora abrir uma empresa?")
	if err := engine.ProcessEvent(context.Background(), testParticipant, ev); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Interstitial then the model reply, as plain messages.
	if len(msg.Messages) != 2 {
		t.Fatalf("expected 2 plain messages, got %d", len(msg.Messages))
	}
	if !strings.Contains(msg.Messages[0].Body, "Processando") {
		t.Errorf("expected interstitial first, got %s", msg.Messages[0].Body)
	}
	if msg.Messages[1].Body != ai.reply {
		t.Errorf("expected model reply, got %s", msg.Messages[1].Body)
	}

	if ai.converseCalls != 1 || ai.lastSystem != "persona" {
		t.Errorf("unexpected model invocation: calls=%d system=%q", ai.converseCalls, ai.lastSystem)
	}

	// Follow-up carrier: two suggestions (third dropped) plus back to start.
	if len(msg.QuickReplies) != 1 {
		t.Fatalf("expected 1 quick-reply message, got %d", len(msg.QuickReplies))
	}
	qr := msg.QuickReplies[0]
	if qr.Body != "Posso ajudar com algo mais?" {
		t.Errorf("unexpected carrier body: %s", qr.Body)
	}
	if len(qr.Options) != 3 {
		t.Fatalf("expected 3 options, got %d", len(qr.Options))
	}
	if qr.Options[0].Token != models.FollowUpTokenPrefix+"Quais documentos preciso?" {
		t.Errorf("unexpected follow-up token: %s", qr.Options[0].Token)
	}
	if qr.Options[2].Token != "GREETING::2" {
		t.Errorf("unexpected back-to-start token: %s", qr.Options[2].Token)
	}

	// Both turns landed in the committed history.
	sess := mustGet(t, store)
	if len(sess.AIHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(sess.AIHistory))
	}
	if sess.AIHistory[0].Role != models.RoleUser || sess.AIHistory[1].Role != models.RoleAssistant {
		t.Errorf("unexpected history roles: %+v", sess.AIHistory)
	}
	if sess.CurrentState != models.StateAIAssistantChatting {
		t.Errorf("expected to stay in AI_ASSISTANT_CHATTING, got %s", sess.CurrentState)
	}
}

func TestConverseAI_ContinuationKeepsHistory(t *testing.T) {
	ai := &mockAIClient{reply: "segunda resposta"}
	engine, store, _ := newTestEngine(t, ai)
	seedSession(t, store, models.StateAIAssistantChatting, func(s *models.Session) {
		s.Context.Language = LanguagePT
		s.Context.SystemInstruction = "persona"
		s.AIHistory = []models.AIMessage{
			{Role: models.RoleUser, Content: "primeira pergunta"},
			{Role: models.RoleAssistant, Content: "primeira resposta"},
		}
	})

	if err := engine.ProcessEvent(context.Background(), testParticipant, models.TextEvent("e depois?")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if ai.lastHistoryLen != 2 {
		t.Errorf("expected prior history passed to the model, got %d", ai.lastHistoryLen)
	}
	if sess := mustGet(t, store); len(sess.AIHistory) != 4 {
		t.Errorf("expected 4 history entries, got %d", len(sess.AIHistory))
	}
}

func TestConverseAI_FollowUpTapReentersAsText(t *testing.T) {
	ai := &mockAIClient{reply: "resposta"}
	engine, store, _ := newTestEngine(t, ai)
	seedSession(t, store, models.StateAIAssistantChatting, func(s *models.Session) {
		s.Context.Language = LanguagePT
		s.Context.SystemInstruction = "persona"
	})

	// A tapped follow-up button decodes to a free-text event carrying the
	// question.
	ev, err := models.DecodeToken(models.EncodeFollowUpToken("Qual o custo?"))
	if err != nil {
		t.Fatalf("failed to decode follow-up token: %v", err)
	}
	if err := engine.ProcessEvent(context.Background(), testParticipant, ev); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ai.lastUserText != "Qual o custo?" {
		t.Errorf("expected follow-up question as user text, got %q", ai.lastUserText)
	}
}

func TestConverseAI_ModelFailureRecovers(t *testing.T) {
	ai := &mockAIClient{replyErr: errors.New("model unavailable")}
	engine, store, msg := newTestEngine(t, ai)
	seedSession(t, store, models.StateAIAssistantChatting, func(s *models.Session) {
		s.Context.Language = LanguageEN
		s.Context.SystemInstruction = "persona"
	})

	if err := engine.ProcessEvent(context.Background(), testParticipant, models.TextEvent("question")); err != nil {
		t.Fatalf("model failure must not fail the turn, got %v", err)
	}

	if len(msg.QuickReplies) != 1 {
		t.Fatalf("expected recovery message, got %d quick replies", len(msg.QuickReplies))
	}
	qr := msg.QuickReplies[0]
	if !strings.Contains(qr.Body, "communication error") {
		t.Errorf("expected localized error, got %s", qr.Body)
	}
	if len(qr.Options) != 1 || qr.Options[0].Token != "GREETING::0" {
		t.Errorf("expected single back-to-start option, got %+v", qr.Options)
	}

	sess := mustGet(t, store)
	if len(sess.AIHistory) != 0 {
		t.Errorf("failed exchange must not be recorded, got %d entries", len(sess.AIHistory))
	}
	if sess.CurrentState != models.StateAIAssistantChatting {
		t.Errorf("state commit must survive the failure, got %s", sess.CurrentState)
	}
}

func TestConverseAI_SuggestionFailureDegrades(t *testing.T) {
	ai := &mockAIClient{reply: "resposta", followUpErr: errors.New("no suggestions")}
	engine, store, msg := newTestEngine(t, ai)
	seedSession(t, store, models.StateAIAssistantChatting, func(s *models.Session) {
		s.Context.Language = LanguagePT
		s.Context.SystemInstruction = "persona"
	})

	if err := engine.ProcessEvent(context.Background(), testParticipant, models.TextEvent("pergunta")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(msg.QuickReplies) != 1 {
		t.Fatalf("expected carrier message, got %d quick replies", len(msg.QuickReplies))
	}
	qr := msg.QuickReplies[0]
	if len(qr.Options) != 1 || qr.Options[0].Token != "GREETING::0" {
		t.Errorf("expected back-to-start only, got %+v", qr.Options)
	}
}
