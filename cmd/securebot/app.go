package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/securebot-ai/securebot/pkg/audit"
	"github.com/securebot-ai/securebot/pkg/classify"
	"github.com/securebot-ai/securebot/pkg/collab"
	"github.com/securebot-ai/securebot/pkg/config"
	"github.com/securebot-ai/securebot/pkg/executor"
	"github.com/securebot-ai/securebot/pkg/generator"
	"github.com/securebot-ai/securebot/pkg/llm/claude"
	"github.com/securebot-ai/securebot/pkg/llm/ollama"
	"github.com/securebot-ai/securebot/pkg/logger"
	"github.com/securebot-ai/securebot/pkg/router"
	"github.com/securebot-ai/securebot/pkg/sanitize"
	"github.com/securebot-ai/securebot/pkg/skills"
)

// app holds the long-lived services a command needs. Every service is
// constructed exactly once at startup and shared across requests.
type app struct {
	cfg        *config.Config
	registry   *skills.Registry
	classifier *classify.Classifier
	ollama     *ollama.Client
	router     *router.Router
	audit      *audit.Store
}

// newApp wires the full routing pipeline from configuration. withAudit
// controls whether the SQLite audit store is opened; one-shot commands
// skip it to keep the database untouched.
func newApp(ctx context.Context, withAudit bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	registry := skills.NewRegistry(cfg.SkillsDir)
	if err := registry.Reload(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to load skills")
	}

	classifier := classify.New(classify.NewHTTPScorer(cfg.Classifier.URL), cfg.Classifier.Threshold)

	ollamaClient := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.Ollama.Timeout)
	claudeClient := claude.NewClient(cfg.Claude.Model, cfg.Claude.MaxTokens)

	searchClient := collab.NewSearchClient(cfg.Search.URL, cfg.Search.Timeout)
	ragClient := collab.NewRAGClient(cfg.RAG.URL, cfg.RAG.Timeout)
	tasksClient := collab.NewTasksClient(cfg.Memory.URL, cfg.Memory.Timeout)

	sanitizer := sanitize.NewPrivacySanitizer(cfg.RedactKeywords)
	skillGen := generator.New(cfg.SkillsDir, sanitizer, claudeClient)

	exec, err := executor.New(
		cfg.Sandbox.User,
		cfg.Sandbox.DefaultTimeout,
		cfg.Sandbox.BannedCommands,
		ollamaClient,
		executor.WithContextProvider(ragClient),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to configure the skill executor")
	}

	a := &app{
		cfg:        cfg,
		registry:   registry,
		classifier: classifier,
		ollama:     ollamaClient,
	}

	a.router = router.New(
		classifier,
		registry,
		exec,
		skillGen,
		searchClient,
		ragClient,
		tasksClient,
		ollamaClient,
		router.Options{
			Profile:          loadProfile(ctx, cfg.SkillsDir),
			MaxSearchResults: cfg.MaxSearchResults,
		},
	)

	if withAudit {
		store, err := audit.Open(ctx, cfg.AuditDB)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open audit store")
		}
		a.audit = store
	}

	return a, nil
}

func (a *app) close() {
	if a.audit != nil {
		a.audit.Close()
	}
}

// loadProfile reads the operator's user-context document, which lives in
// the memory directory next to the skills directory. Missing is fine.
func loadProfile(ctx context.Context, skillsDir string) string {
	path := filepath.Join(filepath.Dir(skillsDir), "memory", "user.md")
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.G(ctx).WithError(err).Warn("failed to read user profile")
		}
		return ""
	}
	return string(content)
}
