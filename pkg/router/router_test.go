package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securebot-ai/securebot/pkg/classify"
	"github.com/securebot-ai/securebot/pkg/collab"
	"github.com/securebot-ai/securebot/pkg/generator"
	"github.com/securebot-ai/securebot/pkg/skills"
)

type fakeClassifier struct {
	result classify.Result
	calls  int
}

func (f *fakeClassifier) Classify(context.Context, string) classify.Result {
	f.calls++
	return f.result
}

type fakeRegistry struct {
	byTrigger *skills.Skill
	byName    map[string]*skills.Skill
	reloads   int
	reloadErr error
}

func (f *fakeRegistry) Get(name string) *skills.Skill {
	return f.byName[name]
}

func (f *fakeRegistry) FindByTrigger(string) *skills.Skill {
	return f.byTrigger
}

func (f *fakeRegistry) Reload(context.Context) error {
	f.reloads++
	return f.reloadErr
}

type fakeExecutor struct {
	response string
	executed []string
}

func (f *fakeExecutor) Execute(_ context.Context, skill *skills.Skill, _ string) string {
	f.executed = append(f.executed, skill.Name)
	return f.response
}

type fakeSkillGen struct {
	result generator.Result
	calls  int
}

func (f *fakeSkillGen) Generate(context.Context, string, string) generator.Result {
	f.calls++
	return f.result
}

type fakeSearcher struct {
	results []collab.SearchResult
	calls   int
}

func (f *fakeSearcher) Search(context.Context, string, int) []collab.SearchResult {
	f.calls++
	return f.results
}

type fakeRAG struct {
	context string
	calls   int
}

func (f *fakeRAG) Context(context.Context, string, int) string {
	f.calls++
	return f.context
}

type fakeTasks struct {
	list *collab.TaskList
}

func (f *fakeTasks) Tasks(context.Context) *collab.TaskList {
	return f.list
}

type fakeSynth struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeSynth) Generate(_ context.Context, prompt, _ string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fixture struct {
	classifier *fakeClassifier
	registry   *fakeRegistry
	executor   *fakeExecutor
	skillGen   *fakeSkillGen
	searcher   *fakeSearcher
	rag        *fakeRAG
	tasks      *fakeTasks
	synth      *fakeSynth
	router     *Router
}

func newFixture(intent classify.Intent, confidence float64) *fixture {
	f := &fixture{
		classifier: &fakeClassifier{result: classify.Result{Intent: intent, Confidence: confidence}},
		registry:   &fakeRegistry{byName: map[string]*skills.Skill{}},
		executor:   &fakeExecutor{response: "executed"},
		skillGen:   &fakeSkillGen{},
		searcher:   &fakeSearcher{},
		rag:        &fakeRAG{},
		tasks:      &fakeTasks{},
		synth:      &fakeSynth{response: "synthesized"},
	}
	f.router = New(f.classifier, f.registry, f.executor, f.skillGen, f.searcher, f.rag, f.tasks, f.synth, Options{})
	return f
}

func TestRouteInjectedResultsBypassClassification(t *testing.T) {
	f := newFixture(classify.IntentAction, 0.9)

	injected := []collab.SearchResult{{Title: "hit", Snippet: "snippet"}}
	decision := f.router.Route(context.Background(), "what happened today", injected)

	assert.Equal(t, 0, f.classifier.calls)
	assert.Equal(t, MethodSearchInjected, decision.Method)
	assert.Equal(t, classify.IntentSearch, decision.Intent)
	assert.Equal(t, "synthesized", decision.Response)
	assert.Contains(t, f.synth.prompts[0], "[1] hit")
}

func TestRouteSearch(t *testing.T) {
	f := newFixture(classify.IntentSearch, 1.0)
	f.searcher.results = []collab.SearchResult{{Title: "weather", Snippet: "sunny"}}

	decision := f.router.Route(context.Background(), "weather today", nil)
	assert.Equal(t, MethodSearch, decision.Method)
	assert.Equal(t, EngineOllama, decision.Engine)
	assert.Zero(t, decision.Cost)
	// Deterministic branch served without touching retrieval.
	assert.Equal(t, 0, f.rag.calls)
}

func TestRouteSearchFailureDegradesToKnowledge(t *testing.T) {
	f := newFixture(classify.IntentSearch, 1.0)
	f.searcher.results = nil
	f.rag.context = "background"

	decision := f.router.Route(context.Background(), "weather today", nil)
	assert.Equal(t, MethodKnowledge, decision.Method)
	assert.Equal(t, 1, f.searcher.calls)
	assert.Equal(t, 1, f.rag.calls)
}

func TestRouteActionExecutesMatchedSkill(t *testing.T) {
	f := newFixture(classify.IntentAction, 0.8)
	f.registry.byTrigger = &skills.Skill{Name: "disk-usage"}
	f.executor.response = "disk is fine"

	decision := f.router.Route(context.Background(), "check disk space", nil)
	assert.Equal(t, MethodSkillExecution, decision.Method)
	assert.Equal(t, "disk-usage", decision.SkillUsed)
	assert.Equal(t, "disk is fine", decision.Response)
	assert.Zero(t, decision.Cost)
	assert.Equal(t, 0, f.skillGen.calls)
	assert.Equal(t, 0, f.rag.calls)
}

func TestRouteActionMissGeneratesThenExecutes(t *testing.T) {
	f := newFixture(classify.IntentAction, 0.8)
	created := &skills.Skill{Name: "list-docker-containers"}
	f.skillGen.result = generator.Result{
		Success:   true,
		SkillName: "list-docker-containers",
		SkillPath: "/skills/list-docker-containers/SKILL.md",
		Cost:      0.0105,
	}
	f.registry.byName["list-docker-containers"] = created

	decision := f.router.Route(context.Background(), "list running docker containers", nil)
	require.Equal(t, MethodSkillCreation, decision.Method)
	assert.Equal(t, EngineClaudeOllama, decision.Engine)
	assert.Equal(t, "list-docker-containers", decision.SkillCreated)
	assert.InDelta(t, 0.0105, decision.Cost, 1e-9)
	assert.Equal(t, 1, f.registry.reloads)
	assert.Equal(t, []string{"list-docker-containers"}, f.executor.executed)
	// Retrieval is never consulted on the deterministic path.
	assert.Equal(t, 0, f.rag.calls)
}

func TestRouteActionGenerationFailureDegradesToKnowledge(t *testing.T) {
	f := newFixture(classify.IntentAction, 0.8)
	f.skillGen.result = generator.Result{Reason: "validation failed", Cost: 0.002}
	f.rag.context = "background"

	decision := f.router.Route(context.Background(), "do the thing", nil)
	assert.Equal(t, MethodKnowledge, decision.Method)
	// Spend from the failed generation attempt is still reported.
	assert.InDelta(t, 0.002, decision.Cost, 1e-9)
	assert.Equal(t, 1, f.rag.calls)
	assert.Empty(t, f.executor.executed)
}

func TestRouteActionMissingSkillAfterReloadDegrades(t *testing.T) {
	f := newFixture(classify.IntentAction, 0.8)
	f.skillGen.result = generator.Result{Success: true, SkillName: "ghost"}

	decision := f.router.Route(context.Background(), "do the thing", nil)
	assert.Equal(t, MethodKnowledge, decision.Method)
	assert.Empty(t, f.executor.executed)
}

func TestRouteTask(t *testing.T) {
	f := newFixture(classify.IntentTask, 0.7)
	f.tasks.list = &collab.TaskList{Todo: []collab.Task{{Title: "ship it", Priority: "high"}}}

	decision := f.router.Route(context.Background(), "what's on my plate", nil)
	assert.Equal(t, MethodTasks, decision.Method)
	assert.Contains(t, f.synth.prompts[0], "ship it")
	assert.Equal(t, 0, f.rag.calls)
}

func TestRouteTaskUnavailableDegradesToKnowledge(t *testing.T) {
	f := newFixture(classify.IntentTask, 0.7)
	f.tasks.list = nil

	decision := f.router.Route(context.Background(), "what's on my plate", nil)
	assert.Equal(t, MethodKnowledge, decision.Method)
	assert.Equal(t, 1, f.rag.calls)
}

func TestRouteKnowledgeUsesRAGContext(t *testing.T) {
	f := newFixture(classify.IntentKnowledge, 0.6)
	f.rag.context = "binary search halves the interval"

	decision := f.router.Route(context.Background(), "explain how binary search works", nil)
	assert.Equal(t, MethodKnowledge, decision.Method)
	assert.Equal(t, EngineOllama, decision.Engine)
	assert.Zero(t, decision.Cost)
	assert.Contains(t, f.synth.prompts[0], "binary search halves the interval")
	assert.Contains(t, f.synth.prompts[0], "explain how binary search works")
}

func TestRouteKnowledgeEmptyContextIsFine(t *testing.T) {
	f := newFixture(classify.IntentKnowledge, 0.6)
	f.rag.context = ""

	decision := f.router.Route(context.Background(), "explain goroutines", nil)
	assert.Equal(t, MethodKnowledge, decision.Method)
	assert.Equal(t, "explain goroutines", f.synth.prompts[0])
}

func TestRouteChatMethod(t *testing.T) {
	f := newFixture(classify.IntentChat, 0.5)

	decision := f.router.Route(context.Background(), "hi there", nil)
	assert.Equal(t, MethodChat, decision.Method)
}

func TestRouteWorstCaseApology(t *testing.T) {
	f := newFixture(classify.IntentKnowledge, 0.6)
	f.synth.err = assert.AnError

	decision := f.router.Route(context.Background(), "anything", nil)
	assert.Equal(t, ApologyMessage, decision.Response)
	assert.Equal(t, MethodError, decision.Method)
	assert.Zero(t, decision.Cost)
}

func TestRouteNilCollaboratorsDegrade(t *testing.T) {
	cls := &fakeClassifier{result: classify.Result{Intent: classify.IntentSearch, Confidence: 1.0}}
	synth := &fakeSynth{response: "ok"}
	r := New(cls, &fakeRegistry{}, &fakeExecutor{}, &fakeSkillGen{}, nil, nil, nil, synth, Options{})

	decision := r.Route(context.Background(), "latest news", nil)
	assert.Equal(t, MethodKnowledge, decision.Method)
	assert.Equal(t, "ok", decision.Response)
}
