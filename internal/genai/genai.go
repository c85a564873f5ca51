// Package genai provides the generative-model collaborator using the OpenAI API.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/jzfdigital/atendebot/internal/models"
)

// Error variables for better error handling and testability.
var (
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrNoSuggestions     = errors.New("no follow-up suggestions returned")
)

// ClientInterface defines the generative-model operations the turn engine
// needs. Implementations must be safe for concurrent use.
type ClientInterface interface {
	// Converse sends the persona instruction, prior exchange history and the
	// new user turn, returning the model's reply text.
	Converse(ctx context.Context, systemInstruction string, history []models.AIMessage, userText string) (string, error)

	// SuggestFollowUps asks the model for a strictly-typed array of short
	// follow-up question strings for the given fixed-shape prompt.
	SuggestFollowUps(ctx context.Context, prompt string) ([]string, error)
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChatService adapts the OpenAI SDK to chatService.
type openaiChatService struct {
	client openai.Client
}

func (s openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model openai.ChatModel
}

// NewClient initializes a GenAI client. The API key comes from options or
// the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: client initialized", "model", cfg.Model)
	return &Client{chat: openaiChatService{client: cli}, model: cfg.Model}, nil
}

// Converse runs one chat-completion round-trip with the full exchange history.
func (c *Client) Converse(ctx context.Context, systemInstruction string, history []models.AIMessage, userText string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if systemInstruction != "" {
		messages = append(messages, openai.SystemMessage(systemInstruction))
	}
	for _, m := range history {
		switch m.Role {
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(userText))

	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("genai.Converse: chat completion failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	reply := resp.Choices[0].Message.Content
	slog.Debug("genai.Converse: reply generated", "historyLen", len(history), "replyLength", len(reply))
	return reply, nil
}

// followUpSchema constrains the structured follow-up response.
var followUpSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"questions": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []string{"questions"},
}

// SuggestFollowUps requests follow-up questions as structured JSON output.
// Parse failures and empty results surface as errors; callers degrade to a
// minimal option set rather than failing the turn.
func (c *Client) SuggestFollowUps(ctx context.Context, prompt string) ([]string, error) {
	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "follow_up_questions",
					Schema: followUpSchema,
					Strict: param.NewOpt(true),
				},
			},
		},
	})
	if err != nil {
		slog.Error("genai.SuggestFollowUps: completion failed", "error", err)
		return nil, fmt.Errorf("follow-up completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoicesReturned
	}
	questions, err := parseFollowUps(resp.Choices[0].Message.Content)
	if err != nil {
		slog.Warn("genai.SuggestFollowUps: parse failed", "error", err)
		return nil, err
	}
	slog.Debug("genai.SuggestFollowUps: suggestions parsed", "count", len(questions))
	return questions, nil
}

// parseFollowUps accepts either the schema-shaped object or a bare JSON
// array of strings (older models occasionally return the latter).
func parseFollowUps(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	var wrapped struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil && len(wrapped.Questions) > 0 {
		return wrapped.Questions, nil
	}
	var bare []string
	if err := json.Unmarshal([]byte(content), &bare); err == nil && len(bare) > 0 {
		return bare, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoSuggestions, content)
}
