// Package claude is the remote-model collaborator used exclusively by the
// skill generator. Every call costs money; callers receive token counts so
// cost can be attributed and audited.
package claude

import (
	"context"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pkg/errors"
)

// ErrNoCredential is returned when no Anthropic API key is configured.
// Callers treat this as a generation failure, not a fatal error.
var ErrNoCredential = errors.New("anthropic API key not configured")

// Response carries the generated text plus the token counts reported by the
// API, which drive cost accounting.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client wraps the Anthropic Messages API for single-turn generation
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewClient creates a Claude client. Credentials come from the standard
// ANTHROPIC_API_KEY environment variable; creation succeeds without one but
// Generate will fail with ErrNoCredential.
func NewClient(model string, maxTokens int) *Client {
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	if maxTokens == 0 {
		maxTokens = 4000
	}
	return &Client{
		client:    anthropic.NewClient(),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// Generate sends a single user message under the given system prompt and
// returns the text plus token usage.
func (c *Client) Generate(ctx context.Context, system, user string) (*Response, error) {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil, ErrNoCredential
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}

	response, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "error sending message to Anthropic")
	}

	var text string
	for _, block := range response.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}

	return &Response{
		Text:         text,
		InputTokens:  int(response.Usage.InputTokens),
		OutputTokens: int(response.Usage.OutputTokens),
	}, nil
}
