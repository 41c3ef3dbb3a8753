package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// HTTPScorer talks to the zero-shot classification sidecar over HTTP.
// The sidecar owns the model; Load verifies the model is warm so the
// per-request path never pays warm-up latency.
type HTTPScorer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPScorer creates a scorer against the classifier sidecar at baseURL
func NewHTTPScorer(baseURL string) *HTTPScorer {
	return &HTTPScorer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Load asks the sidecar to load its model into memory
func (s *HTTPScorer) Load(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/load", nil)
	if err != nil {
		return errors.Wrap(err, "failed to build classifier load request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "classifier sidecar unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("classifier load returned HTTP %d", resp.StatusCode)
	}
	return nil
}

type scoreRequest struct {
	Text      string   `json:"text"`
	Labels    []string `json:"labels"`
	Threshold float64  `json:"threshold"`
}

type scoreResponse struct {
	Scores []LabelScore `json:"scores"`
}

// Score submits the text and label set for zero-shot scoring
func (s *HTTPScorer) Score(ctx context.Context, text string, labels []string) ([]LabelScore, error) {
	body, err := json.Marshal(scoreRequest{Text: text, Labels: labels})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal score request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build score request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "classifier sidecar unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("classifier returned HTTP %d", resp.StatusCode)
	}

	var decoded scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "failed to decode score response")
	}
	return decoded.Scores, nil
}
