// Package classify maps free-text queries to routing intents. A regex fast
// path short-circuits obvious current-info queries to search; everything
// else goes to a zero-shot multi-label scorer behind the Scorer interface.
// Classification always resolves: any scorer failure degrades to the
// knowledge intent, never to an intent that could execute something.
package classify

import (
	"context"
	"regexp"

	"github.com/securebot-ai/securebot/pkg/logger"
)

// Intent is the router's classification of a query's purpose
type Intent string

const (
	// IntentSearch routes to the web-search pipeline
	IntentSearch Intent = "search"
	// IntentAction routes to skill lookup and execution
	IntentAction Intent = "action"
	// IntentTask routes to the task-list collaborator
	IntentTask Intent = "task"
	// IntentKnowledge routes to RAG-backed local generation; this is the
	// safe fallback for every failure path
	IntentKnowledge Intent = "knowledge"
	// IntentChat routes to RAG-backed local generation alongside knowledge
	IntentChat Intent = "chat"
)

// Labels is the closed label set sent to the zero-shot scorer
var Labels = []string{
	string(IntentSearch),
	string(IntentAction),
	string(IntentTask),
	string(IntentKnowledge),
	string(IntentChat),
}

// DefaultThreshold is the minimum score a label must clear to win
const DefaultThreshold = 0.3

// searchTriggers catches temporal/current-info queries without model
// inference. These are unambiguous in real traffic.
var searchTriggers = regexp.MustCompile(
	`(?i)\b(today|tonight|right now|currently|showtimes?|playing near|` +
		`weather|score|news today|price of|stock price|open now|hours today|` +
		`near me|latest|breaking|what.s happening)\b`,
)

// LabelScore is one scored label from the zero-shot model
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Scorer is the zero-shot multi-label classification collaborator. Load is
// the expensive warm-up and is called once at startup, never per request.
type Scorer interface {
	Load(ctx context.Context) error
	Score(ctx context.Context, text string, labels []string) ([]LabelScore, error)
}

// Result is a classification outcome
type Result struct {
	Intent     Intent
	Confidence float64
}

// Classifier resolves a query to exactly one intent. Construct once at
// startup and reuse for every request.
type Classifier struct {
	scorer    Scorer
	threshold float64
	ready     bool
}

// New creates a classifier over the given scorer. A nil scorer yields a
// regex-only classifier.
func New(scorer Scorer, threshold float64) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Classifier{scorer: scorer, threshold: threshold}
}

// Warmup loads the scorer once. Failure is non-fatal: the classifier keeps
// serving from the regex fast path and the knowledge default.
func (c *Classifier) Warmup(ctx context.Context) {
	if c.scorer == nil {
		return
	}
	if err := c.scorer.Load(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("classifier warm-up failed, degrading to fast path only")
		return
	}
	c.ready = true
}

// Ready reports whether the zero-shot scorer completed warm-up
func (c *Classifier) Ready() bool {
	return c.ready
}

// Classify resolves the query's intent. It never returns an error: scorer
// failures and below-threshold results both degrade to knowledge.
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	log := logger.G(ctx)

	if searchTriggers.MatchString(text) {
		log.WithField("query", truncate(text)).Debug("regex fast path: search")
		return Result{Intent: IntentSearch, Confidence: 1.0}
	}

	if !c.ready {
		log.Debug("scorer not loaded, defaulting to knowledge")
		return Result{Intent: IntentKnowledge, Confidence: 0.0}
	}

	scores, err := c.scorer.Score(ctx, text, Labels)
	if err != nil {
		log.WithError(err).Warn("zero-shot scoring failed, defaulting to knowledge")
		return Result{Intent: IntentKnowledge, Confidence: 0.0}
	}

	var top *LabelScore
	for i := range scores {
		if scores[i].Score < c.threshold {
			continue
		}
		if top == nil || scores[i].Score > top.Score {
			top = &scores[i]
		}
	}
	if top == nil {
		return Result{Intent: IntentKnowledge, Confidence: 0.5}
	}

	intent := normalizeLabel(top.Label)
	log.WithField("intent", intent).WithField("confidence", top.Score).
		WithField("query", truncate(text)).Info("classified intent")
	return Result{Intent: intent, Confidence: top.Score}
}

// normalizeLabel maps scorer labels onto the intent set; unknown labels
// resolve to knowledge, never to action.
func normalizeLabel(label string) Intent {
	switch label {
	case "search":
		return IntentSearch
	case "action", "task_action":
		return IntentAction
	case "task":
		return IntentTask
	case "chat":
		return IntentChat
	case "knowledge", "memory":
		return IntentKnowledge
	default:
		return IntentKnowledge
	}
}

func truncate(s string) string {
	if len(s) > 60 {
		return s[:60]
	}
	return s
}
