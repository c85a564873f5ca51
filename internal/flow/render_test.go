package flow

import (
	"strings"
	"testing"

	"github.com/jzfdigital/atendebot/internal/models"
)

func TestRenderStep_LanguageSelect(t *testing.T) {
	g := NewGraph()
	step, _ := g.Lookup(models.StateLanguageSelect)
	msg := RenderStep(step, DefaultLanguage, models.NewContext())

	if !strings.Contains(msg.Body, "selecione seu idioma") {
		t.Errorf("unexpected body: %s", msg.Body)
	}
	if len(msg.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(msg.Options))
	}
	if msg.Options[0].Label != "Português" || msg.Options[0].Token != "GREETING::0" {
		t.Errorf("unexpected first option: %+v", msg.Options[0])
	}
	if msg.Options[1].Label != "English" || msg.Options[1].Token != "GREETING::1" {
		t.Errorf("unexpected second option: %+v", msg.Options[1])
	}
}

func TestRenderStep_GreetingEnglish(t *testing.T) {
	g := NewGraph()
	step, _ := g.Lookup(models.StateGreeting)
	msg := RenderStep(step, LanguageEN, models.NewContext())

	if !strings.HasPrefix(msg.Body, "Hello! Welcome") {
		t.Errorf("unexpected body: %s", msg.Body)
	}
	if len(msg.Options) != 4 {
		t.Fatalf("expected 4 options, got %d", len(msg.Options))
	}
	if msg.Options[3].Token != "LANGUAGE_SELECT::3" {
		t.Errorf("unexpected change-language token: %s", msg.Options[3].Token)
	}
}

func TestRenderText_ComputedTemplate(t *testing.T) {
	ctx := models.NewContext()
	ctx.LastInput = "Maria Silva"
	got := RenderText(keySchedulingCompanyName, LanguagePT, ctx)
	if !strings.Contains(got, "Obrigado, Maria Silva.") {
		t.Errorf("unexpected rendering: %s", got)
	}
}

func TestRenderText_SummaryMeetingTypeFallback(t *testing.T) {
	// "Online" has no English variant; the English summary falls back to the
	// base meeting type field.
	ctx := models.NewContext()
	ctx.Merge(map[models.ContextKey]string{
		models.ContextKeyServiceEn:    "Consulting",
		models.ContextKeyClientTypeEn: "New Client",
		models.ContextKeyMeetingType:  "Online",
	})
	ctx.History[models.StateSchedulingResponsibleName] = "John"
	ctx.History[models.StateSchedulingCompanyName] = "Acme"
	ctx.History[models.StateSchedulingContactInfo] = "john@acme.com"

	got := RenderText(keySchedulingSummary, LanguageEN, ctx)
	if !strings.Contains(got, "Modality: *Online*") {
		t.Errorf("expected meeting type fallback, got: %s", got)
	}
	if !strings.Contains(got, "Company: *Acme*") {
		t.Errorf("expected captured company, got: %s", got)
	}
}

func TestResolveText_MissingKeyRendersEmpty(t *testing.T) {
	if got := RenderText(models.TextKey("does-not-exist"), LanguagePT, models.NewContext()); got != "" {
		t.Errorf("expected empty string for missing key, got %q", got)
	}
}

func TestResolveText_UnknownLanguageFallsBack(t *testing.T) {
	got := RenderText(keyProcessing, "fr", models.NewContext())
	want := RenderText(keyProcessing, DefaultLanguage, models.NewContext())
	if got != want {
		t.Errorf("expected default-language fallback, got %q", got)
	}
}

func TestRenderStep_EmptyLabelFallback(t *testing.T) {
	step := models.FlowStep{
		Text: "pick",
		Options: []models.Option{
			{TextKey: models.TextKey("does-not-exist"), NextState: models.StateGreeting},
		},
	}
	msg := RenderStep(step, LanguagePT, models.NewContext())
	if msg.Options[0].Label != fallbackLabel {
		t.Errorf("expected fallback label, got %q", msg.Options[0].Label)
	}
}

func TestLanguage_Default(t *testing.T) {
	if got := Language(models.NewContext()); got != DefaultLanguage {
		t.Errorf("expected default language, got %s", got)
	}
	ctx := models.NewContext()
	ctx.Language = LanguageEN
	if got := Language(ctx); got != LanguageEN {
		t.Errorf("expected en, got %s", got)
	}
}

func TestPersonaInstruction(t *testing.T) {
	ctx := models.NewContext()
	ctx.Merge(map[models.ContextKey]string{
		models.ContextKeyDepartment:   "Fiscal",
		models.ContextKeyDepartmentEn: "Tax",
	})

	pt := PersonaInstruction(LanguagePT, ctx)
	if !strings.Contains(pt, "legislação fiscal") {
		t.Errorf("unexpected pt persona: %s", pt)
	}
	en := PersonaInstruction(LanguageEN, ctx)
	if !strings.Contains(en, "tax legislation") {
		t.Errorf("unexpected en persona: %s", en)
	}
}

func TestPersonaInstruction_UnknownDepartmentFallsBack(t *testing.T) {
	got := PersonaInstruction(LanguagePT, models.NewContext())
	if got != personaInstructions[LanguagePT]["Fiscal"] {
		t.Errorf("expected Fiscal fallback, got: %s", got)
	}
	got = PersonaInstruction(LanguageEN, models.NewContext())
	if got != personaInstructions[LanguageEN]["Tax"] {
		t.Errorf("expected Tax fallback, got: %s", got)
	}
}

func TestFollowUpPrompt(t *testing.T) {
	pt := FollowUpPrompt(LanguagePT, "pergunta", "resposta")
	if !strings.Contains(pt, `"pergunta"`) || !strings.Contains(pt, "array JSON") {
		t.Errorf("unexpected pt prompt: %s", pt)
	}
	en := FollowUpPrompt(LanguageEN, "question", "answer")
	if !strings.Contains(en, `"question"`) || !strings.Contains(en, "JSON array") {
		t.Errorf("unexpected en prompt: %s", en)
	}
}
