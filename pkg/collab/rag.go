package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/securebot-ai/securebot/pkg/logger"
)

const (
	ragQueryLimit    = 200
	ragDefaultTokens = 300
)

// RAGClient fetches a bounded context blob from the retrieval collaborator
type RAGClient struct {
	baseURL string
	http    *http.Client
}

// NewRAGClient creates a RAG client for the given base URL
func NewRAGClient(baseURL string, timeout time.Duration) *RAGClient {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RAGClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type ragResponse struct {
	Context string `json:"context"`
	Text    string `json:"text"`
}

// Context returns retrieval context for the query, capped at maxTokens.
// An empty string means "no context"; failures degrade to the same.
func (c *RAGClient) Context(ctx context.Context, query string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = ragDefaultTokens
	}
	query = truncateRunes(query, ragQueryLimit)

	endpoint := c.baseURL + "/context?query=" + url.QueryEscape(query) +
		"&max_tokens=" + strconv.Itoa(maxTokens)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to build rag request")
		return ""
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("rag collaborator unreachable")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.G(ctx).WithField("status", resp.StatusCode).Warn("rag collaborator returned an error")
		return ""
	}

	var decoded ragResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to decode rag response")
		return ""
	}

	if decoded.Context != "" {
		return decoded.Context
	}
	return decoded.Text
}
