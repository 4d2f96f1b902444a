// Package extract turns free-text lead descriptions into structured fields.
//
// The OpenAI-backed Client handles messy real-world input; the Static
// extractor covers the documented comma-order formats without a network call
// and doubles as the fallback when no API key is configured.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// LeadFields carries the structured values an extractor pulled from a message.
// Empty strings mean the message did not mention the field.
type LeadFields struct {
	CompanyName string `json:"company_name"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone"`
	Phone2      string `json:"phone_2"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	Segment     string `json:"segment"`
	TeamSize    string `json:"team_size"`
	Turnover    string `json:"turnover"`
	CurrentSys  string `json:"current_system"`
	MachineSpec string `json:"machine_specification"`
	Challenges  string `json:"challenges"`
	Remark      string `json:"remark"`
	AssignedTo  string `json:"assigned_to"`
	Source      string `json:"source"`
}

// Extractor parses lead information out of free text.
type Extractor interface {
	// LeadInfo extracts fields for a brand-new lead.
	LeadInfo(ctx context.Context, text string) (*LeadFields, error)
	// UpdateFields maps a reply onto the named missing fields, in order.
	UpdateFields(ctx context.Context, text string, missing []string) (*LeadFields, error)
	// CoreLeadUpdate extracts corrected company/contact/phone details.
	CoreLeadUpdate(ctx context.Context, text string) (*LeadFields, error)
}

// Client is the OpenAI-backed extractor.
type Client struct {
	client openai.Client
	model  openai.ChatModel
}

// Opts holds configuration options for the extractor client.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option configures extractor options.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// NewClient initializes an extractor client. Falls back to the OPENAI_API_KEY
// environment variable when no key option is given.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}, nil
}

func (c *Client) complete(ctx context.Context, systemPrompt, userText string) (*LeadFields, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userText),
		},
	})
	if err != nil {
		slog.Error("extract: chat completion failed", "error", err)
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	raw := stripCodeFences(resp.Choices[0].Message.Content)
	var fields LeadFields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		slog.Error("extract: model returned invalid JSON", "error", err, "content", raw)
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}
	return &fields, nil
}

// LeadInfo extracts fields for a brand-new lead.
func (c *Client) LeadInfo(ctx context.Context, text string) (*LeadFields, error) {
	slog.Debug("extract: LeadInfo invoked", "text_length", len(text))
	fields, err := c.complete(ctx, leadInfoPrompt, text)
	if err != nil {
		return nil, err
	}
	if fields.Source == "" {
		fields.Source = "whatsapp"
	}
	return fields, nil
}

// UpdateFields maps a reply onto the named missing fields, in order.
func (c *Client) UpdateFields(ctx context.Context, text string, missing []string) (*LeadFields, error) {
	slog.Debug("extract: UpdateFields invoked", "missing", missing)
	prompt := fmt.Sprintf(updateFieldsPrompt, strings.Join(missing, ", "))
	return c.complete(ctx, prompt, text)
}

// CoreLeadUpdate extracts corrected company/contact/phone details.
func (c *Client) CoreLeadUpdate(ctx context.Context, text string) (*LeadFields, error) {
	slog.Debug("extract: CoreLeadUpdate invoked", "text_length", len(text))
	return c.complete(ctx, coreUpdatePrompt, text)
}

// stripCodeFences removes a surrounding ```json fence if the model added one.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

const leadInfoPrompt = `You extract CRM lead details from a WhatsApp message.
Return only a JSON object with these keys (empty string when absent):
company_name, contact_name, phone, phone_2, email, address, segment, team_size,
turnover, current_system, machine_specification, challenges, remark,
assigned_to, source.
When the message is a plain comma-separated line, map the values in order:
3 values mean company, contact person, phone; a 4th value is the address;
with 5 values the one containing "@" is the email and the rest of the tail is
the address. Default source to "whatsapp". Return only JSON, no prose.`

const updateFieldsPrompt = `You extract CRM field updates from a WhatsApp reply.
The reply provides values for these fields, in this order: %s.
Return only a JSON object using these keys where applicable: address, segment,
team_size, email, remark, phone_2, turnover, current_system,
machine_specification, challenges. Comma-separated values map onto the listed
fields in order. Omit or leave empty anything not provided. Return only JSON.`

const coreUpdatePrompt = `You extract corrected core lead details from a
WhatsApp reply. Return only a JSON object with keys company_name, contact_name,
phone. Comma-separated values map in that order. Empty string when a value is
not provided. Return only JSON.`
