package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jzfdigital/atendebot/internal/models"
)

const (
	// DefaultGraphBaseURL is the Meta Graph API endpoint for the WhatsApp
	// Business Cloud API.
	DefaultGraphBaseURL = "https://graph.facebook.com/v20.0"

	defaultHTTPTimeout = 30 * time.Second
)

// CloudOpts holds configuration options for the Cloud API client.
type CloudOpts struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	HTTPClient    *http.Client
}

// CloudOption defines a configuration option for the Cloud API client.
type CloudOption func(*CloudOpts)

// WithAccessToken sets the bearer token for Graph API calls.
func WithAccessToken(token string) CloudOption {
	return func(o *CloudOpts) { o.AccessToken = token }
}

// WithPhoneNumberID sets the sending WhatsApp business phone number ID.
func WithPhoneNumberID(id string) CloudOption {
	return func(o *CloudOpts) { o.PhoneNumberID = id }
}

// WithBaseURL overrides the Graph API base URL, mainly for tests.
func WithBaseURL(url string) CloudOption {
	return func(o *CloudOpts) { o.BaseURL = url }
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(c *http.Client) CloudOption {
	return func(o *CloudOpts) { o.HTTPClient = c }
}

// CloudAPIClient sends WhatsApp messages through the Meta Cloud API. Quick
// replies map to interactive reply buttons, so tapped buttons come back to
// the webhook with their token intact.
type CloudAPIClient struct {
	httpClient    *http.Client
	baseURL       string
	accessToken   string
	phoneNumberID string
}

// NewCloudAPIClient creates a Cloud API messaging client. Credentials fall
// back to the WHATSAPP_TOKEN and WHATSAPP_PHONE_NUMBER_ID environment
// variables when not provided via options.
func NewCloudAPIClient(opts ...CloudOption) (*CloudAPIClient, error) {
	var cfg CloudOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccessToken == "" {
		cfg.AccessToken = os.Getenv("WHATSAPP_TOKEN")
	}
	if cfg.PhoneNumberID == "" {
		cfg.PhoneNumberID = os.Getenv("WHATSAPP_PHONE_NUMBER_ID")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGraphBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("WhatsApp access token must be provided")
	}
	if cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("WhatsApp phone number ID must be provided")
	}

	return &CloudAPIClient{
		httpClient:    cfg.HTTPClient,
		baseURL:       cfg.BaseURL,
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
	}, nil
}

// ValidateAndCanonicalizeRecipient validates a recipient phone number and
// returns it in the bare international format the Cloud API expects.
func (c *CloudAPIClient) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizeRecipient(recipient)
}

type textBody struct {
	Body string `json:"body"`
}

type textPayload struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type buttonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type replyButton struct {
	Type  string      `json:"type"`
	Reply buttonReply `json:"reply"`
}

type buttonAction struct {
	Buttons []replyButton `json:"buttons"`
}

type interactiveBody struct {
	Type   string       `json:"type"`
	Body   textBody     `json:"body"`
	Action buttonAction `json:"action"`
}

type interactivePayload struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Interactive      interactiveBody `json:"interactive"`
}

// SendMessage sends a plain text WhatsApp message.
func (c *CloudAPIClient) SendMessage(ctx context.Context, to string, body string) error {
	payload := textPayload{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	}
	if err := c.post(ctx, payload); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("CloudAPIClient.SendMessage: message sent", "to", to)
	return nil
}

// SendQuickReplies sends an interactive button message. The Cloud API allows
// at most three reply buttons with 20-character titles; overflow options are
// dropped and long titles truncated silently, while tokens are preserved so
// taps round-trip to the engine unmodified.
func (c *CloudAPIClient) SendQuickReplies(ctx context.Context, to string, body string, options []models.ReplyOption) error {
	if len(options) == 0 {
		return c.SendMessage(ctx, to, body)
	}
	if len(options) > models.MaxReplyButtons {
		slog.Debug("CloudAPIClient.SendQuickReplies: dropping overflow options", "to", to, "offered", len(options), "sent", models.MaxReplyButtons)
		options = options[:models.MaxReplyButtons]
	}

	buttons := make([]replyButton, 0, len(options))
	for _, opt := range options {
		buttons = append(buttons, replyButton{
			Type: "reply",
			Reply: buttonReply{
				ID:    opt.Token,
				Title: models.TruncateLabel(opt.Label),
			},
		})
	}

	payload := interactivePayload{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "interactive",
		Interactive: interactiveBody{
			Type:   "button",
			Body:   textBody{Body: body},
			Action: buttonAction{Buttons: buttons},
		},
	}
	if err := c.post(ctx, payload); err != nil {
		return fmt.Errorf("failed to send quick replies to %s: %w", to, err)
	}
	slog.Debug("CloudAPIClient.SendQuickReplies: message sent", "to", to, "buttons", len(buttons))
	return nil
}

// post marshals and delivers one message payload to the phone number's
// /messages endpoint.
func (c *CloudAPIClient) post(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph API returned status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
