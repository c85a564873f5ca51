package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jzfdigital/atendebot/internal/genai"
	"github.com/jzfdigital/atendebot/internal/models"
	"github.com/jzfdigital/atendebot/internal/session"
)

// MessagingService defines the outbound transport operations the engine needs.
type MessagingService interface {
	// SendMessage sends a plain text message.
	SendMessage(ctx context.Context, to string, body string) error
	// SendQuickReplies sends a message with selectable quick replies whose
	// identifiers are the engine's encoded tokens.
	SendQuickReplies(ctx context.Context, to string, body string, options []models.ReplyOption) error
}

// DefaultPaceDelay spaces consecutive messages of one auto-advance burst.
const DefaultPaceDelay = time.Second

// Engine processes one inbound event into a committed session update and
// zero or more outbound messages.
type Engine struct {
	graph     *Graph
	sessions  session.Store
	locks     *session.KeyedLock
	msg       MessagingService
	ai        genai.ClientInterface
	paceDelay time.Duration
}

// Option defines a configuration option for the engine.
type Option func(*Engine)

// WithPaceDelay overrides the delay between auto-advanced messages.
func WithPaceDelay(d time.Duration) Option {
	return func(e *Engine) { e.paceDelay = d }
}

// NewEngine creates a turn engine. The graph is validated; an invalid graph
// is a configuration error and the process must not start.
func NewEngine(graph *Graph, sessions session.Store, msg MessagingService, ai genai.ClientInterface, opts ...Option) (*Engine, error) {
	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dialogue graph: %w", err)
	}
	e := &Engine{
		graph:     graph,
		sessions:  sessions,
		locks:     session.NewKeyedLock(),
		msg:       msg,
		ai:        ai,
		paceDelay: DefaultPaceDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ProcessEvent runs one full turn for a participant. Turns for the same
// participant are serialized; the session is exclusively owned until the
// turn completes.
func (e *Engine) ProcessEvent(ctx context.Context, participantID string, ev models.InboundEvent) error {
	e.locks.Lock(participantID)
	defer e.locks.Unlock(participantID)

	sess, err := e.sessions.Get(participantID)
	if err != nil {
		slog.Error("Engine.ProcessEvent: failed to load session", "error", err, "participantID", participantID)
		return fmt.Errorf("failed to load session: %w", err)
	}

	prevState := sess.CurrentState
	nextState := e.transition(&sess, ev)

	// Returning to start wipes the in-progress transaction. A greeting
	// reached after a language was chosen keeps the accumulated context;
	// re-selecting the language discards everything.
	if nextState == models.StateGreeting && sess.Context.Language == "" {
		sess.Context = models.NewContext()
		sess.AIHistory = nil
	} else if nextState == models.StateLanguageSelect {
		sess.Context = models.NewContext()
		sess.AIHistory = nil
	}

	aiEntry := nextState == models.StateAIAssistantChatting && ev.Kind != models.EventText
	aiContinue := nextState == models.StateAIAssistantChatting && ev.Kind == models.EventText

	if aiEntry {
		// Entering the AI sub-flow: pick the persona now and start from an
		// empty transcript.
		lang := Language(sess.Context)
		sess.Context.SystemInstruction = PersonaInstruction(lang, sess.Context)
		sess.AIHistory = nil
	}

	// Commit before any outbound effect; the transition holds even if
	// rendering or delivery fails.
	sess.CurrentState = nextState
	sess.UpdatedAt = time.Now()
	if err := e.sessions.Put(sess); err != nil {
		slog.Error("Engine.ProcessEvent: failed to commit session", "error", err, "participantID", participantID)
		return fmt.Errorf("failed to commit session: %w", err)
	}
	slog.Info("Engine.ProcessEvent: turn committed", "participantID", participantID, "from", prevState, "to", nextState, "eventKind", ev.Kind)

	switch {
	case aiEntry:
		e.sendStep(ctx, sess, nextState)
	case aiContinue:
		e.converseAI(ctx, &sess, ev.Text)
	default:
		// Leaving the AI sub-flow wipes its transcript.
		if len(sess.AIHistory) > 0 {
			sess.AIHistory = nil
			sess.UpdatedAt = time.Now()
			if err := e.sessions.Put(sess); err != nil {
				slog.Error("Engine.ProcessEvent: failed to clear AI history", "error", err, "participantID", participantID)
			}
		}
		e.autoAdvance(ctx, &sess)
	}
	return nil
}

// transition applies the per-event state transition rules and context
// accumulation, returning the tentative next state. It mutates only the
// session's context, never its current state.
func (e *Engine) transition(sess *models.Session, ev models.InboundEvent) models.DialogueState {
	switch ev.Kind {
	case models.EventOption:
		// The token is only trusted if the option at that index, in the step
		// the session currently occupies, still targets the same state.
		// Anything else is a stale or replayed token and recovers to the
		// greeting, never an error.
		step, ok := e.graph.Lookup(sess.CurrentState)
		if ok && ev.OptionIndex >= 0 && ev.OptionIndex < len(step.Options) {
			opt := step.Options[ev.OptionIndex]
			if opt.NextState == ev.TargetState {
				sess.Context.Merge(opt.Payload)
				return ev.TargetState
			}
		}
		slog.Warn("Engine.transition: stale option token, falling back to greeting",
			"participantID", sess.ParticipantID, "currentState", sess.CurrentState,
			"target", ev.TargetState, "index", ev.OptionIndex)
		return models.StateGreeting

	case models.EventText:
		if sess.CurrentState == models.StateAIAssistantChatting {
			return models.StateAIAssistantChatting
		}
		step, ok := e.graph.Lookup(sess.CurrentState)
		if ok && step.RequiresText && step.NextState != "" {
			if sess.Context.History == nil {
				sess.Context.History = make(map[models.DialogueState]string)
			}
			sess.Context.History[sess.CurrentState] = ev.Text
			sess.Context.LastInput = ev.Text
			return step.NextState
		}
		// Unexpected free text: defensive no-op, state unchanged.
		slog.Debug("Engine.transition: free text in non-capturing state, ignoring",
			"participantID", sess.ParticipantID, "state", sess.CurrentState)
		return sess.CurrentState
	}
	return sess.CurrentState
}

// autoAdvance renders and sends the current step, then walks unconditional
// successors of pass-through steps, delivering each as part of one burst
// with a pacing delay between messages.
func (e *Engine) autoAdvance(ctx context.Context, sess *models.Session) {
	for {
		step, ok := e.graph.Lookup(sess.CurrentState)
		if !ok {
			// Undefined states render the greeting instead of failing.
			slog.Warn("Engine.autoAdvance: state not in graph, rendering greeting", "participantID", sess.ParticipantID, "state", sess.CurrentState)
			step, _ = e.graph.Lookup(models.StateGreeting)
			e.send(ctx, sess.ParticipantID, RenderStep(step, Language(sess.Context), sess.Context))
			return
		}

		e.send(ctx, sess.ParticipantID, RenderStep(step, Language(sess.Context), sess.Context))

		if !isPassThrough(step) {
			return
		}
		if !e.pace(ctx) {
			return
		}
		sess.CurrentState = step.NextState
		sess.UpdatedAt = time.Now()
		if err := e.sessions.Put(*sess); err != nil {
			slog.Error("Engine.autoAdvance: failed to persist advanced state", "error", err, "participantID", sess.ParticipantID)
			return
		}
		slog.Debug("Engine.autoAdvance: advanced", "participantID", sess.ParticipantID, "state", sess.CurrentState)
	}
}

// sendStep renders and sends a single step without advancing.
func (e *Engine) sendStep(ctx context.Context, sess models.Session, state models.DialogueState) {
	step, ok := e.graph.Lookup(state)
	if !ok {
		return
	}
	e.send(ctx, sess.ParticipantID, RenderStep(step, Language(sess.Context), sess.Context))
}

// send delivers one outbound message, choosing the quick-reply shape when
// options are present. Delivery failures are logged, not propagated; the
// turn's state is already committed.
func (e *Engine) send(ctx context.Context, to string, msg models.OutboundMessage) {
	var err error
	if len(msg.Options) > 0 {
		err = e.msg.SendQuickReplies(ctx, to, msg.Body, msg.Options)
	} else {
		err = e.msg.SendMessage(ctx, to, msg.Body)
	}
	if err != nil {
		slog.Error("Engine.send: delivery failed", "error", err, "to", to)
	}
}

// pace waits the configured inter-message delay, honoring cancellation.
// Returns false when the context ended first.
func (e *Engine) pace(ctx context.Context) bool {
	if e.paceDelay <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(e.paceDelay):
		return true
	case <-ctx.Done():
		return false
	}
}
