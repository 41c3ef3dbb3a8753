// Package collab holds the HTTP clients for the external collaborator
// services the router consults: web search, the RAG context provider,
// and the task-list store. Every client degrades to an empty result on
// failure so a collaborator outage never fails a routing decision.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/securebot-ai/securebot/pkg/logger"
)

const snippetLimit = 100

// SearchResult is a single web search hit
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url,omitempty"`
}

// SearchClient queries the search collaborator's tool-execution endpoint
type SearchClient struct {
	baseURL string
	http    *http.Client
}

// NewSearchClient creates a search client for the given base URL
func NewSearchClient(baseURL string, timeout time.Duration) *SearchClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &SearchClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	Tool      string       `json:"tool"`
	Params    searchParams `json:"params"`
	SessionID string       `json:"session_id"`
}

type searchParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results  []SearchResult `json:"results"`
	Provider string         `json:"provider"`
}

// Search returns up to maxResults web hits for the query. Any failure is
// logged and returned as nil, which the router treats as "no results".
func (c *SearchClient) Search(ctx context.Context, query string, maxResults int) []SearchResult {
	body, err := json.Marshal(searchRequest{
		Tool:      "web_search",
		Params:    searchParams{Query: query, MaxResults: maxResults},
		SessionID: "router",
	})
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to marshal search request")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to build search request")
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("search collaborator unreachable")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.G(ctx).WithField("status", resp.StatusCode).Warn("search collaborator returned an error")
		return nil
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to decode search response")
		return nil
	}

	logger.G(ctx).WithFields(map[string]interface{}{
		"provider": decoded.Provider,
		"results":  len(decoded.Results),
	}).Debug("search completed")
	return decoded.Results
}

// BuildSearchContext renders search results into a compact prompt. With no
// results the query passes through unchanged.
func BuildSearchContext(query string, results []SearchResult) string {
	if len(results) == 0 {
		return query
	}

	var sb strings.Builder
	sb.WriteString("Search results:\n\n")
	for i, result := range results {
		title := result.Title
		if title == "" {
			title = "No title"
		}
		snippet := result.Snippet
		if snippet == "" {
			snippet = "No snippet"
		}
		snippet = truncateRunes(snippet, snippetLimit)
		fmt.Fprintf(&sb, "[%d] %s\n    %s...\n\n", i+1, title, snippet)
	}
	fmt.Fprintf(&sb, "\nQuestion: %s\n", query)
	return sb.String()
}

// truncateRunes caps s at limit bytes without splitting a UTF-8 sequence.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
