// Package ollama is the local-model collaborator client. All routing
// branches that synthesize a natural-language response go through here;
// calls are free and stay on the local host.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/securebot-ai/securebot/pkg/logger"
)

const (
	generateAttempts = 3
	retryDelay       = 500 * time.Millisecond
)

// Client talks to an Ollama server's non-streaming generate endpoint
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates an Ollama client for the given base URL and model
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

// Model returns the model this client generates with
func (c *Client) Model() string {
	return c.model
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends a prompt (and optional system prompt) to /api/generate and
// returns the generated text. Transient network failures are retried.
func (c *Client) Generate(ctx context.Context, prompt, system string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: system,
		Stream: false,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal generate request")
	}

	var text string
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				err := errors.Errorf("ollama returned HTTP %d: %s", resp.StatusCode, payload)
				if resp.StatusCode >= 500 {
					return err
				}
				return retry.Unrecoverable(err)
			}

			var decoded generateResponse
			if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
				return errors.Wrap(err, "failed to decode generate response")
			}
			text = decoded.Response
			return nil
		},
		retry.Attempts(generateAttempts),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).Warn("retrying ollama generate")
		}),
	)
	if err != nil {
		return "", errors.Wrap(err, "ollama generation failed")
	}
	return text, nil
}

// Ping verifies the Ollama server is reachable
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "ollama unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("ollama health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}
