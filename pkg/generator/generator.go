// Package generator synthesizes new skills via the remote model when the
// registry has no match for an action-intent query. Request text is
// privacy-sanitized before it crosses the process boundary, and the
// generated definition is validated before it is persisted.
package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/securebot-ai/securebot/pkg/llm/claude"
	"github.com/securebot-ai/securebot/pkg/logger"
	"github.com/securebot-ai/securebot/pkg/sanitize"
	"github.com/securebot-ai/securebot/pkg/skills"
)

// MaxContentLength caps a generated definition. Anything larger is
// rejected as runaway generation.
const MaxContentLength = 10000

var nameFieldPattern = regexp.MustCompile(`(?m)^name:\s*(\S+)\s*$`)

const systemPrompt = `You generate skill definitions for a personal assistant. A skill is a single SKILL.md file with YAML frontmatter and a markdown body.

Frontmatter fields:
  name: lowercase identifier, letters/digits/hyphens/underscores, 3-50 chars, starts and ends alphanumeric
  description: one line describing what the skill does
  triggers: list of short lowercase phrases a user request would contain
  execution_mode: "bash" or "ollama"
  timeout: integer seconds (bash mode only)

There are exactly two output formats.

Format 1, bash mode. Use for tasks a shell script can answer (system state, files, processes, network). The body must contain a "## Script" section with a fenced bash block whose stdout answers the request:

---
name: disk-usage
description: Report free disk space on the root filesystem
triggers:
  - disk space
  - disk usage
execution_mode: bash
timeout: 10
---
# Disk Usage

## Script
` + "```bash" + `
df -h /
` + "```" + `

Format 2, ollama mode. Use for reasoning, explanation, or text transformation. The body is the instruction template and must contain the $ARGUMENTS placeholder where the user's request is substituted:

---
name: explain-concept
description: Explain a technical concept in plain language
triggers:
  - explain
execution_mode: ollama
---
# Explain Concept

Explain the following in plain language, with one short example: $ARGUMENTS

Rules:
1. Output ONLY the SKILL.md content. No preamble, no fences around the whole file, no commentary.
2. One skill does one task.
3. Make triggers specific enough that unrelated queries do not match.
4. Bash scripts must be non-interactive and finish within the timeout.`

// RemoteModel is the remote generation backend
type RemoteModel interface {
	Generate(ctx context.Context, system, user string) (*claude.Response, error)
	Model() string
}

// Result is the structured outcome of a generation attempt. Cost is
// reported even on failure when tokens were already spent.
type Result struct {
	Success   bool
	SkillName string
	SkillPath string
	Mode      skills.ExecutionMode
	Reason    string
	Cost      float64
}

// Generator turns a user request into a persisted, validated skill
type Generator struct {
	skillsDir string
	sanitizer *sanitize.PrivacySanitizer
	model     RemoteModel
}

// New creates a Generator writing under skillsDir
func New(skillsDir string, sanitizer *sanitize.PrivacySanitizer, model RemoteModel) *Generator {
	return &Generator{
		skillsDir: skillsDir,
		sanitizer: sanitizer,
		model:     model,
	}
}

// Generate synthesizes, validates, and persists a skill for the request.
// profile is an optional user-context document; both it and the request
// are privacy-sanitized before leaving the process.
func (g *Generator) Generate(ctx context.Context, request, profile string) Result {
	log := logger.G(ctx)

	cleanRequest := g.sanitizer.Sanitize(request)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n", cleanRequest)
	if profile != "" {
		fmt.Fprintf(&sb, "\nUser context:\n%s\n", g.sanitizer.Sanitize(profile))
	}
	sb.WriteString("\nGenerate the complete SKILL.md now.")

	resp, err := g.model.Generate(ctx, systemPrompt, sb.String())
	if err != nil {
		if errors.Is(err, claude.ErrNoCredential) {
			log.Warn("skill generation skipped, no remote credential")
			return Result{Reason: "no remote model credential available"}
		}
		log.WithError(err).Error("remote generation failed")
		return Result{Reason: "remote generation failed: " + err.Error()}
	}

	cost := claude.Cost(g.model.Model(), resp.InputTokens, resp.OutputTokens)
	content := strings.TrimSpace(resp.Text)

	skill, err := g.validate(content)
	if err != nil {
		log.WithError(err).Warn("generated skill failed validation")
		return Result{Reason: "validation failed: " + err.Error(), Cost: cost}
	}

	path, err := g.persist(skill.Name, content)
	if err != nil {
		log.WithError(err).Error("failed to persist skill")
		return Result{Reason: "persistence failed: " + err.Error(), Cost: cost}
	}

	log.WithFields(map[string]interface{}{
		"skill": skill.Name,
		"mode":  skill.Mode,
		"cost":  cost,
	}).Info("skill generated")

	return Result{
		Success:   true,
		SkillName: skill.Name,
		SkillPath: path,
		Mode:      skill.Mode,
		Cost:      cost,
	}
}

// validate applies the structural checks that must all pass before a
// generated definition is persisted.
func (g *Generator) validate(content string) (*skills.Skill, error) {
	var result *multierror.Error

	if len(content) == 0 {
		result = multierror.Append(result, errors.New("empty definition"))
	}
	if len(content) > MaxContentLength {
		result = multierror.Append(result, errors.Errorf("definition exceeds %d bytes", MaxContentLength))
	}

	match := nameField(content)
	if match == "" {
		result = multierror.Append(result, errors.New("missing name field"))
	} else if err := skills.ValidateName(match); err != nil {
		result = multierror.Append(result, err)
	} else if err := g.checkWithinRoot(match); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	skill, err := skills.ParseSkill(filepath.Join(g.skillsDir, match, skills.SkillFileName), []byte(content))
	if err != nil {
		return nil, errors.Wrap(err, "definition does not parse")
	}
	return skill, nil
}

// checkWithinRoot rejects any name whose resolved directory would escape
// the skills root.
func (g *Generator) checkWithinRoot(name string) error {
	root, err := filepath.Abs(g.skillsDir)
	if err != nil {
		return errors.Wrap(err, "failed to resolve skills root")
	}
	dir, err := filepath.Abs(filepath.Join(g.skillsDir, name))
	if err != nil {
		return errors.Wrap(err, "failed to resolve skill path")
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.Errorf("skill name %q escapes the skills directory", name)
	}
	return nil
}

// persist writes the definition under skills/<name>/SKILL.md. A colliding
// name overwrites, last write wins.
func (g *Generator) persist(name, content string) (string, error) {
	dir := filepath.Join(g.skillsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create skill directory")
	}
	path := filepath.Join(dir, skills.SkillFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write skill file")
	}
	return path, nil
}

func nameField(content string) string {
	m := nameFieldPattern.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return m[1]
}
