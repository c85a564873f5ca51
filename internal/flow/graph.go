// Package flow implements the turn-processing engine for atendebot: the
// static dialogue graph, the per-turn state transition rules, response
// rendering and the generative-AI chat sub-flow.
package flow

import (
	"fmt"

	"github.com/jzfdigital/atendebot/internal/models"
)

// Graph is the immutable dialogue graph: a lookup table from state to step.
type Graph struct {
	steps map[models.DialogueState]models.FlowStep
}

// NewGraph returns the built-in conversation graph.
func NewGraph() *Graph {
	return &Graph{steps: conversationSteps}
}

// Lookup returns the step for a state and whether it is defined.
func (g *Graph) Lookup(state models.DialogueState) (models.FlowStep, bool) {
	step, ok := g.steps[state]
	return step, ok
}

// Validate checks the graph's structural invariants once at startup:
// every referenced successor and option target must itself be defined (or be
// the terminal end state), and no cycle may be reachable purely through
// unconditional successors of pass-through steps. A violation is a
// configuration error and the process must not start.
func (g *Graph) Validate() error {
	for state, step := range g.steps {
		if step.NextState != "" {
			if err := g.checkTarget(state, step.NextState); err != nil {
				return err
			}
		}
		for i, opt := range step.Options {
			if opt.NextState == "" {
				return fmt.Errorf("state %s option %d has no target state", state, i)
			}
			if err := g.checkTarget(state, opt.NextState); err != nil {
				return err
			}
		}
	}

	// Auto-advance termination: follow unconditional successors of
	// pass-through steps and make sure we never loop.
	for state := range g.steps {
		seen := map[models.DialogueState]bool{state: true}
		cur := state
		for {
			step, ok := g.steps[cur]
			if !ok || !isPassThrough(step) {
				break
			}
			next := step.NextState
			if seen[next] {
				return fmt.Errorf("auto-advance cycle through state %s", next)
			}
			seen[next] = true
			cur = next
		}
	}
	return nil
}

func (g *Graph) checkTarget(from, to models.DialogueState) error {
	if to == models.StateEnd {
		return nil
	}
	if _, ok := g.steps[to]; !ok {
		return fmt.Errorf("state %s references undefined state %s", from, to)
	}
	return nil
}

// isPassThrough reports whether a step advances without user input.
func isPassThrough(step models.FlowStep) bool {
	return step.NextState != "" && !step.RequiresText && len(step.Options) == 0
}

// conversationSteps is the static route table for the assistant.
var conversationSteps = map[models.DialogueState]models.FlowStep{
	models.StateLanguageSelect: {
		Text: "Please select your language / Por favor, selecione seu idioma",
		Options: []models.Option{
			{Text: "Português", NextState: models.StateGreeting, Payload: map[models.ContextKey]string{models.ContextKeyLanguage: "pt"}},
			{Text: "English", NextState: models.StateGreeting, Payload: map[models.ContextKey]string{models.ContextKeyLanguage: "en"}},
		},
	},
	models.StateGreeting: {
		TextKey: keyGreeting,
		Options: []models.Option{
			{TextKey: keyOptionAIAssistant, NextState: models.StateAIAssistantSelectDept},
			{TextKey: keyOptionScheduling, NextState: models.StateSchedulingService},
			{TextKey: keyOptionAttendant, NextState: models.StateAttendantSelect},
			{TextKey: keyOptionChangeLanguage, NextState: models.StateLanguageSelect},
		},
	},
	models.StateAIAssistantSelectDept: {
		TextKey: keyAIDeptSelect,
		Options: []models.Option{
			{TextKey: keyDeptRH, NextState: models.StateAIAssistantChatting, Payload: map[models.ContextKey]string{models.ContextKeyDepartment: "RH", models.ContextKeyDepartmentEn: "HR"}},
			{TextKey: keyDeptAccounting, NextState: models.StateAIAssistantChatting, Payload: map[models.ContextKey]string{models.ContextKeyDepartment: "Contábil", models.ContextKeyDepartmentEn: "Accounting"}},
			{TextKey: keyDeptTax, NextState: models.StateAIAssistantChatting, Payload: map[models.ContextKey]string{models.ContextKeyDepartment: "Fiscal", models.ContextKeyDepartmentEn: "Tax"}},
			{TextKey: keyDeptCorporate, NextState: models.StateAIAssistantChatting, Payload: map[models.ContextKey]string{models.ContextKeyDepartment: "Societário", models.ContextKeyDepartmentEn: "Corporate"}},
			{TextKey: keyBackToStart, NextState: models.StateGreeting},
		},
	},
	models.StateAIAssistantChatting: {
		TextKey:      keyAIDeptPrompt,
		RequiresText: true,
	},
	models.StateSchedulingService: {
		TextKey: keySchedulingService,
		Options: []models.Option{
			{TextKey: keyServiceOpening, NextState: models.StateSchedulingClientType, Payload: map[models.ContextKey]string{models.ContextKeyService: "Abertura de Empresa", models.ContextKeyServiceEn: "Company Formation"}},
			{TextKey: keyServiceTaxReturn, NextState: models.StateSchedulingClientType, Payload: map[models.ContextKey]string{models.ContextKeyService: "Declaração de IR", models.ContextKeyServiceEn: "Income Tax Return"}},
			{TextKey: keyServiceConsulting, NextState: models.StateSchedulingClientType, Payload: map[models.ContextKey]string{models.ContextKeyService: "Consultoria Financeira", models.ContextKeyServiceEn: "Financial Consulting"}},
			{TextKey: keyServiceOther, NextState: models.StateSchedulingClientType, Payload: map[models.ContextKey]string{models.ContextKeyService: "Outros Assuntos", models.ContextKeyServiceEn: "Other Matters"}},
		},
	},
	models.StateSchedulingClientType: {
		TextKey: keySchedulingClientType,
		Options: []models.Option{
			{TextKey: keyClientTypeYes, NextState: models.StateSchedulingMeetingType, Payload: map[models.ContextKey]string{models.ContextKeyClientType: "Cliente Existente", models.ContextKeyClientTypeEn: "Existing Client"}},
			{TextKey: keyClientTypeNo, NextState: models.StateSchedulingMeetingType, Payload: map[models.ContextKey]string{models.ContextKeyClientType: "Novo Cliente", models.ContextKeyClientTypeEn: "New Client"}},
		},
	},
	models.StateSchedulingMeetingType: {
		TextKey: keySchedulingMeetingType,
		Options: []models.Option{
			{TextKey: keyMeetingTypeOnline, NextState: models.StateSchedulingResponsibleName, Payload: map[models.ContextKey]string{models.ContextKeyMeetingType: "Online"}},
			{TextKey: keyMeetingTypeOnSite, NextState: models.StateSchedulingResponsibleName, Payload: map[models.ContextKey]string{models.ContextKeyMeetingType: "Presencial", models.ContextKeyMeetingTypeEn: "In Person"}},
		},
	},
	models.StateSchedulingResponsibleName: {
		TextKey:      keySchedulingResponsibleName,
		RequiresText: true,
		NextState:    models.StateSchedulingCompanyName,
	},
	models.StateSchedulingCompanyName: {
		TextKey:      keySchedulingCompanyName,
		RequiresText: true,
		NextState:    models.StateSchedulingContactInfo,
	},
	models.StateSchedulingContactInfo: {
		TextKey:      keySchedulingContactInfo,
		RequiresText: true,
		NextState:    models.StateSchedulingSummary,
	},
	models.StateSchedulingSummary: {
		TextKey: keySchedulingSummary,
		Options: []models.Option{
			{TextKey: keyConfirmYes, NextState: models.StateSchedulingConfirmed},
			{TextKey: keyConfirmNo, NextState: models.StateSchedulingService},
		},
	},
	models.StateSchedulingConfirmed: {
		TextKey:   keySchedulingConfirmed,
		NextState: models.StateGreeting,
	},
	models.StateAttendantSelect: {
		TextKey: keyAttendantSelect,
		Options: []models.Option{
			{TextKey: keyDeptRH, NextState: models.StateAttendantTransfer, Payload: map[models.ContextKey]string{models.ContextKeyDepartment: "RH", models.ContextKeyDepartmentEn: "HR"}},
			{TextKey: keyDeptAccounting, NextState: models.StateAttendantTransfer, Payload: map[models.ContextKey]string{models.ContextKeyDepartment: "Contábil", models.ContextKeyDepartmentEn: "Accounting"}},
			{TextKey: keyDeptTax, NextState: models.StateAttendantTransfer, Payload: map[models.ContextKey]string{models.ContextKeyDepartment: "Fiscal", models.ContextKeyDepartmentEn: "Tax"}},
			{TextKey: keyBackToStart, NextState: models.StateGreeting},
		},
	},
	models.StateAttendantTransfer: {
		TextKey: keyAttendantTransfer,
	},
}
