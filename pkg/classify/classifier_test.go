package classify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScorer struct {
	loadErr  error
	scores   []LabelScore
	scoreErr error
	calls    int
}

func (f *fakeScorer) Load(_ context.Context) error {
	return f.loadErr
}

func (f *fakeScorer) Score(_ context.Context, _ string, _ []string) ([]LabelScore, error) {
	f.calls++
	return f.scores, f.scoreErr
}

func TestRegexFastPath(t *testing.T) {
	scorer := &fakeScorer{scores: []LabelScore{{Label: "chat", Score: 0.9}}}
	c := New(scorer, DefaultThreshold)
	c.Warmup(context.Background())

	queries := []string{
		"what's the weather in Austin",
		"showtimes for the new movie today",
		"latest news about the election",
		"coffee shops open now near me",
	}
	for _, q := range queries {
		res := c.Classify(context.Background(), q)
		assert.Equal(t, IntentSearch, res.Intent, "query %q", q)
		assert.Equal(t, 1.0, res.Confidence)
	}
	// The fast path must not reach the model.
	assert.Zero(t, scorer.calls)
}

func TestModelPath(t *testing.T) {
	scorer := &fakeScorer{scores: []LabelScore{
		{Label: "action", Score: 0.85},
		{Label: "chat", Score: 0.4},
	}}
	c := New(scorer, DefaultThreshold)
	c.Warmup(context.Background())

	res := c.Classify(context.Background(), "restart the nginx service")
	assert.Equal(t, IntentAction, res.Intent)
	assert.InDelta(t, 0.85, res.Confidence, 0.0001)
}

func TestBelowThresholdDefaultsToKnowledge(t *testing.T) {
	scorer := &fakeScorer{scores: []LabelScore{
		{Label: "action", Score: 0.2},
		{Label: "search", Score: 0.1},
	}}
	c := New(scorer, DefaultThreshold)
	c.Warmup(context.Background())

	res := c.Classify(context.Background(), "hmm")
	assert.Equal(t, IntentKnowledge, res.Intent)
}

func TestScorerErrorDefaultsToKnowledge(t *testing.T) {
	scorer := &fakeScorer{scoreErr: errors.New("model exploded")}
	c := New(scorer, DefaultThreshold)
	c.Warmup(context.Background())

	res := c.Classify(context.Background(), "do something dangerous")
	assert.Equal(t, IntentKnowledge, res.Intent)
	assert.Zero(t, res.Confidence)
}

func TestWarmupFailureDegrades(t *testing.T) {
	scorer := &fakeScorer{loadErr: errors.New("no GPU")}
	c := New(scorer, DefaultThreshold)
	c.Warmup(context.Background())

	assert.False(t, c.Ready())
	res := c.Classify(context.Background(), "explain how binary search works")
	assert.Equal(t, IntentKnowledge, res.Intent)
	assert.Zero(t, scorer.calls)
}

func TestNilScorer(t *testing.T) {
	c := New(nil, 0)
	c.Warmup(context.Background())

	res := c.Classify(context.Background(), "hello there")
	assert.Equal(t, IntentKnowledge, res.Intent)
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, IntentAction, normalizeLabel("task_action"))
	assert.Equal(t, IntentKnowledge, normalizeLabel("memory"))
	assert.Equal(t, IntentKnowledge, normalizeLabel("rm_rf_everything"))
}

func TestHTTPScorer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/load":
			w.WriteHeader(http.StatusOK)
		case "/classify":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"scores":[{"label":"task","score":0.92}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	scorer := NewHTTPScorer(srv.URL)
	require.NoError(t, scorer.Load(context.Background()))

	scores, err := scorer.Score(context.Background(), "what are my pending tasks", Labels)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "task", scores[0].Label)
	assert.InDelta(t, 0.92, scores[0].Score, 0.0001)
}

func TestHTTPScorerUnreachable(t *testing.T) {
	scorer := NewHTTPScorer("http://127.0.0.1:1")
	assert.Error(t, scorer.Load(context.Background()))

	_, err := scorer.Score(context.Background(), "anything", Labels)
	assert.Error(t, err)
}
