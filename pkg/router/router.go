// Package router is the orchestrating state machine. It classifies each
// query, attempts the deterministic pipeline (skill execution, search,
// tasks) first, and only falls back to the RAG-backed knowledge pipeline.
// Deterministic branches never consult vector retrieval before an exact
// trigger match or explicit generation has been attempted.
package router

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/securebot-ai/securebot/pkg/classify"
	"github.com/securebot-ai/securebot/pkg/collab"
	"github.com/securebot-ai/securebot/pkg/generator"
	"github.com/securebot-ai/securebot/pkg/logger"
	"github.com/securebot-ai/securebot/pkg/skills"
	"github.com/securebot-ai/securebot/pkg/telemetry"
)

// ApologyMessage is the worst-case response when every branch failed.
const ApologyMessage = "I'm having trouble processing your request right now. Please try again in a moment."

// Routing methods reported in decisions.
const (
	MethodSearchInjected = "search_injected"
	MethodSearch         = "ollama_search"
	MethodSkillExecution = "skill_execution"
	MethodSkillCreation  = "skill_creation"
	MethodTasks          = "ollama_tasks"
	MethodKnowledge      = "ollama_knowledge"
	MethodChat           = "ollama_chat"
	MethodError          = "error"
)

// Engines reported in decisions.
const (
	EngineOllama       = "ollama"
	EngineClaudeOllama = "claude+ollama"
	EngineNone         = "none"
)

// Decision is the structured outcome of one routed query
type Decision struct {
	Response     string          `json:"response"`
	Intent       classify.Intent `json:"intent"`
	Confidence   float64         `json:"confidence"`
	Method       string          `json:"method"`
	Engine       string          `json:"engine"`
	Cost         float64         `json:"cost"`
	SkillUsed    string          `json:"skill_used,omitempty"`
	SkillCreated string          `json:"skill_created,omitempty"`
	SkillPath    string          `json:"skill_path,omitempty"`
	Duration     time.Duration   `json:"-"`
}

// Classifier resolves a query to an intent
type Classifier interface {
	Classify(ctx context.Context, text string) classify.Result
}

// Registry is the skill lookup surface the router needs
type Registry interface {
	Get(name string) *skills.Skill
	FindByTrigger(query string) *skills.Skill
	Reload(ctx context.Context) error
}

// Executor runs a matched skill and always returns text
type Executor interface {
	Execute(ctx context.Context, skill *skills.Skill, query string) string
}

// SkillGenerator synthesizes a new skill on a registry miss
type SkillGenerator interface {
	Generate(ctx context.Context, request, profile string) generator.Result
}

// Searcher fetches web results; nil means "no results"
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) []collab.SearchResult
}

// ContextProvider fetches best-effort retrieval context
type ContextProvider interface {
	Context(ctx context.Context, query string, maxTokens int) string
}

// TaskLister fetches the task list; nil means unavailable
type TaskLister interface {
	Tasks(ctx context.Context) *collab.TaskList
}

// Synthesizer produces the final natural-language text
type Synthesizer interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
}

// Router composes the routing pipeline
type Router struct {
	classifier Classifier
	registry   Registry
	executor   Executor
	generator  SkillGenerator
	searcher   Searcher
	rag        ContextProvider
	tasks      TaskLister
	ollama     Synthesizer

	profile          string
	maxSearchResults int
	ragTokens        int
}

// Options tune optional router behavior
type Options struct {
	// Profile is an operator-provided user-context document passed to the
	// generator (privacy-sanitized there before leaving the process).
	Profile string
	// MaxSearchResults caps search collaborator hits per query.
	MaxSearchResults int
	// RAGTokens caps the context size requested from knowledge-pipeline retrieval.
	RAGTokens int
}

// New creates a Router. searcher, rag, and tasks may be nil; the matching
// branches then degrade the same way a collaborator outage would.
func New(
	classifier Classifier,
	registry Registry,
	executor Executor,
	skillGen SkillGenerator,
	searcher Searcher,
	rag ContextProvider,
	tasks TaskLister,
	ollama Synthesizer,
	opts Options,
) *Router {
	if opts.MaxSearchResults <= 0 {
		opts.MaxSearchResults = 3
	}
	if opts.RAGTokens <= 0 {
		opts.RAGTokens = 300
	}
	return &Router{
		classifier:       classifier,
		registry:         registry,
		executor:         executor,
		generator:        skillGen,
		searcher:         searcher,
		rag:              rag,
		tasks:            tasks,
		ollama:           ollama,
		profile:          opts.Profile,
		maxSearchResults: opts.MaxSearchResults,
		ragTokens:        opts.RAGTokens,
	}
}

// Route resolves one query to a Decision. injected carries caller-side
// search results; when present, classification is bypassed by contract.
// Route never returns an error: every failure degrades to a response.
func (r *Router) Route(ctx context.Context, query string, injected []collab.SearchResult) Decision {
	start := time.Now()
	var decision Decision

	_ = telemetry.WithSpan(ctx, "router.route", func(ctx context.Context) error {
		decision = r.route(ctx, query, injected)
		telemetry.SetAttributes(ctx,
			attribute.String("router.intent", string(decision.Intent)),
			attribute.String("router.method", decision.Method),
			attribute.Float64("router.cost", decision.Cost),
		)
		return nil
	})

	decision.Duration = time.Since(start)
	return decision
}

func (r *Router) route(ctx context.Context, query string, injected []collab.SearchResult) Decision {
	log := logger.G(ctx)

	if len(injected) > 0 {
		prompt := collab.BuildSearchContext(query, injected)
		text, err := r.ollama.Generate(ctx, prompt, "")
		if err != nil {
			log.WithError(err).Warn("synthesis over injected results failed")
			return r.apology(classify.IntentSearch, 1.0)
		}
		return Decision{
			Response:   text,
			Intent:     classify.IntentSearch,
			Confidence: 1.0,
			Method:     MethodSearchInjected,
			Engine:     EngineOllama,
		}
	}

	result := r.classifier.Classify(ctx, query)
	log.WithFields(map[string]interface{}{
		"intent":     result.Intent,
		"confidence": result.Confidence,
	}).Debug("query classified")

	switch result.Intent {
	case classify.IntentSearch:
		return r.handleSearch(ctx, query, result)
	case classify.IntentAction:
		return r.handleAction(ctx, query, result)
	case classify.IntentTask:
		return r.handleTask(ctx, query, result)
	default:
		return r.handleKnowledge(ctx, query, result, 0)
	}
}

func (r *Router) handleSearch(ctx context.Context, query string, cls classify.Result) Decision {
	if r.searcher == nil {
		return r.handleKnowledge(ctx, query, cls, 0)
	}

	results := r.searcher.Search(ctx, query, r.maxSearchResults)
	if len(results) == 0 {
		logger.G(ctx).Debug("search returned nothing, degrading to knowledge")
		return r.handleKnowledge(ctx, query, cls, 0)
	}

	prompt := collab.BuildSearchContext(query, results)
	text, err := r.ollama.Generate(ctx, prompt, "")
	if err != nil {
		logger.G(ctx).WithError(err).Warn("search synthesis failed, degrading to knowledge")
		return r.handleKnowledge(ctx, query, cls, 0)
	}

	return Decision{
		Response:   text,
		Intent:     cls.Intent,
		Confidence: cls.Confidence,
		Method:     MethodSearch,
		Engine:     EngineOllama,
	}
}

func (r *Router) handleAction(ctx context.Context, query string, cls classify.Result) Decision {
	log := logger.G(ctx)

	if skill := r.registry.FindByTrigger(query); skill != nil {
		log.WithField("skill", skill.Name).Info("trigger matched, executing skill")
		response := r.executor.Execute(ctx, skill, query)
		return Decision{
			Response:   response,
			Intent:     cls.Intent,
			Confidence: cls.Confidence,
			Method:     MethodSkillExecution,
			Engine:     EngineOllama,
			SkillUsed:  skill.Name,
		}
	}

	log.Info("no skill matched, generating a new one")
	genResult := r.generator.Generate(ctx, query, r.profile)
	if !genResult.Success {
		log.WithField("reason", genResult.Reason).Warn("skill generation failed, degrading to knowledge")
		return r.handleKnowledge(ctx, query, cls, genResult.Cost)
	}

	if err := r.registry.Reload(ctx); err != nil {
		log.WithError(err).Warn("registry reload after generation failed, degrading to knowledge")
		return r.handleKnowledge(ctx, query, cls, genResult.Cost)
	}

	skill := r.registry.Get(genResult.SkillName)
	if skill == nil {
		log.WithField("skill", genResult.SkillName).Warn("generated skill missing after reload, degrading to knowledge")
		return r.handleKnowledge(ctx, query, cls, genResult.Cost)
	}

	response := r.executor.Execute(ctx, skill, query)
	return Decision{
		Response:     response,
		Intent:       cls.Intent,
		Confidence:   cls.Confidence,
		Method:       MethodSkillCreation,
		Engine:       EngineClaudeOllama,
		Cost:         genResult.Cost,
		SkillUsed:    skill.Name,
		SkillCreated: genResult.SkillName,
		SkillPath:    genResult.SkillPath,
	}
}

func (r *Router) handleTask(ctx context.Context, query string, cls classify.Result) Decision {
	if r.tasks == nil {
		return r.handleKnowledge(ctx, query, cls, 0)
	}

	list := r.tasks.Tasks(ctx)
	rendered := collab.RenderTasks(list)
	if rendered == "" {
		logger.G(ctx).Debug("task list unavailable or empty, degrading to knowledge")
		return r.handleKnowledge(ctx, query, cls, 0)
	}

	prompt := fmt.Sprintf("Current tasks:\n%s\n\nUser request: %s\n\nAnswer using the task list above.", rendered, query)
	text, err := r.ollama.Generate(ctx, prompt, "")
	if err != nil {
		logger.G(ctx).WithError(err).Warn("task synthesis failed, degrading to knowledge")
		return r.handleKnowledge(ctx, query, cls, 0)
	}

	return Decision{
		Response:   text,
		Intent:     cls.Intent,
		Confidence: cls.Confidence,
		Method:     MethodTasks,
		Engine:     EngineOllama,
	}
}

// handleKnowledge is the RAG-backed pipeline and the fallthrough target of
// every deterministic failure path. accruedCost carries remote-model spend
// from a failed generation attempt into the final decision.
func (r *Router) handleKnowledge(ctx context.Context, query string, cls classify.Result, accruedCost float64) Decision {
	var ragContext string
	if r.rag != nil {
		ragContext = r.rag.Context(ctx, query, r.ragTokens)
	}

	prompt := query
	if ragContext != "" {
		prompt = fmt.Sprintf("--- RELEVANT CONTEXT ---\n%s\n--- END CONTEXT ---\n\nQuestion: %s", ragContext, query)
	}

	text, err := r.ollama.Generate(ctx, prompt, "")
	if err != nil {
		logger.G(ctx).WithError(err).Error("knowledge synthesis failed")
		return r.apology(cls.Intent, cls.Confidence)
	}

	method := MethodKnowledge
	if cls.Intent == classify.IntentChat {
		method = MethodChat
	}
	return Decision{
		Response:   text,
		Intent:     cls.Intent,
		Confidence: cls.Confidence,
		Method:     method,
		Engine:     EngineOllama,
		Cost:       accruedCost,
	}
}

// apology is the worst-case decision when no branch could produce text.
// It always reports zero cost; the user never pays for a failure.
func (r *Router) apology(intent classify.Intent, confidence float64) Decision {
	return Decision{
		Response:   ApologyMessage,
		Intent:     intent,
		Confidence: confidence,
		Method:     MethodError,
		Engine:     EngineNone,
	}
}
