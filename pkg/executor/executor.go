// Package executor runs a matched skill: bash scripts under a
// lower-privilege OS user with a hard wall-clock timeout, interpreter
// skills through the local model. It always returns text to the caller;
// internal failures degrade to captured output or a fixed message.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"github.com/securebot-ai/securebot/pkg/logger"
	"github.com/securebot-ai/securebot/pkg/sanitize"
	"github.com/securebot-ai/securebot/pkg/skills"
)

const (
	// TimeoutMessage is returned whenever a script exceeds its wall-clock limit.
	TimeoutMessage = "The skill took too long to run and was stopped."
	// FailureMessage is returned when execution produced no usable output.
	FailureMessage = "Skill execution failed. Please try again or rephrase your request."

	ragContextTokens = 300
)

// Generator produces text from the local model
type Generator interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
}

// ContextProvider supplies best-effort retrieval context for response wrapping
type ContextProvider interface {
	Context(ctx context.Context, query string, maxTokens int) string
}

// Executor runs skills in their declared execution mode
type Executor struct {
	sandboxUser    string
	defaultTimeout time.Duration
	bannedGlobs    []glob.Glob
	ollama         Generator
	rag            ContextProvider
}

// Option configures an Executor
type Option func(*Executor)

// WithContextProvider enables best-effort RAG enrichment of responses
func WithContextProvider(rag ContextProvider) Option {
	return func(e *Executor) {
		e.rag = rag
	}
}

// New creates an Executor. bannedCommands are glob patterns matched against
// each command word of a bash script; a match rejects the whole script.
func New(sandboxUser string, defaultTimeout time.Duration, bannedCommands []string, ollama Generator, opts ...Option) (*Executor, error) {
	if defaultTimeout == 0 {
		defaultTimeout = 10 * time.Second
	}
	globs := make([]glob.Glob, len(bannedCommands))
	for i, pattern := range bannedCommands {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid banned command pattern %q", pattern)
		}
		globs[i] = g
	}
	e := &Executor{
		sandboxUser:    sandboxUser,
		defaultTimeout: defaultTimeout,
		bannedGlobs:    globs,
		ollama:         ollama,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs the skill against the query and returns the response text.
// It never returns an error to the caller.
func (e *Executor) Execute(ctx context.Context, skill *skills.Skill, query string) string {
	switch skill.Mode {
	case skills.ModeBash:
		return e.executeBash(ctx, skill, query)
	case skills.ModeOllama:
		return e.executeOllama(ctx, skill, query)
	default:
		logger.G(ctx).WithField("mode", skill.Mode).Error("unknown execution mode")
		return FailureMessage
	}
}

func (e *Executor) executeBash(ctx context.Context, skill *skills.Skill, query string) string {
	log := logger.G(ctx).WithField("skill", skill.Name)

	script := skill.Bash.Script
	if banned := e.findBannedCommand(script); banned != "" {
		log.WithField("command", banned).Warn("script uses a banned command")
		return FailureMessage
	}

	tmp, err := os.CreateTemp("", "skill-*.sh")
	if err != nil {
		log.WithError(err).Error("failed to create script file")
		return FailureMessage
	}
	scriptPath := tmp.Name()
	defer os.Remove(scriptPath)

	if _, err := tmp.WriteString(script); err != nil {
		tmp.Close()
		log.WithError(err).Error("failed to write script file")
		return FailureMessage
	}
	tmp.Close()

	// The sandbox user must be able to read the script.
	if err := os.Chmod(scriptPath, 0o644); err != nil {
		log.WithError(err).Error("failed to chmod script file")
		return FailureMessage
	}

	timeout := e.defaultTimeout
	if skill.Bash.Timeout > 0 {
		timeout = skill.Bash.Timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// An empty sandbox user runs the script as the service identity;
	// production config always sets one.
	var cmd *exec.Cmd
	if e.sandboxUser != "" {
		cmd = exec.CommandContext(execCtx, "sudo", "-u", e.sandboxUser, "bash", scriptPath)
	} else {
		cmd = exec.CommandContext(execCtx, "bash", scriptPath)
	}
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// The script runs in its own process group so the timeout can take down
	// every process it spawned; a lingering background child would otherwise
	// hold the output pipes and block Run past the deadline. WaitDelay bounds
	// the wait even when something survives the group kill.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return e.killProcessGroup(cmd)
	}
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if execCtx.Err() == context.DeadlineExceeded {
		log.WithField("timeout", timeout).Warn("script timed out")
		return TimeoutMessage
	}

	output := strings.TrimSpace(stdout.String())
	if output == "" {
		output = strings.TrimSpace(stderr.String())
	}

	if err != nil {
		log.WithError(err).WithField("elapsed", elapsed).Warn("script exited with an error")
		if output == "" {
			return FailureMessage
		}
	}
	if output == "" {
		return FailureMessage
	}

	log.WithField("elapsed", elapsed).Info("script completed")
	return e.wrapOutput(ctx, query, output)
}

// killProcessGroup signals the whole process group of a running script.
// Descendants of a sudo-run script belong to the sandbox user and can only
// be signalled under that identity.
func (e *Executor) killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid := cmd.Process.Pid
	if e.sandboxUser != "" {
		err := exec.Command("sudo", "-u", e.sandboxUser, "kill", "-KILL", "--", fmt.Sprintf("-%d", pgid)).Run()
		// The group leader is the sudo process itself; kill it directly.
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return err
	}
	return syscall.Kill(-pgid, syscall.SIGKILL)
}

func (e *Executor) executeOllama(ctx context.Context, skill *skills.Skill, query string) string {
	log := logger.G(ctx).WithField("skill", skill.Name)

	arguments := sanitize.HardenPromptInput(query)

	// The query lands in the prompt exactly once: at the placeholder when
	// the skill declares one, appended otherwise.
	prompt := skill.Ollama.Body
	if strings.Contains(prompt, "$ARGUMENTS") {
		prompt = strings.ReplaceAll(prompt, "$ARGUMENTS", arguments)
	} else {
		prompt = fmt.Sprintf("%s\n\nUser query: %s", prompt, arguments)
	}
	if extra := e.fetchContext(ctx, query); extra != "" {
		prompt = fmt.Sprintf("%s\n\n--- RELEVANT CONTEXT ---\n%s\n--- END CONTEXT ---", prompt, extra)
	}

	response, err := e.ollama.Generate(ctx, prompt, "")
	if err != nil {
		log.WithError(err).Warn("skill generation failed")
		return FailureMessage
	}

	log.Info("skill completed")
	return response
}

// wrapOutput turns raw script output into a natural-language response via
// the local model. On any failure the raw output is returned unchanged.
func (e *Executor) wrapOutput(ctx context.Context, query, output string) string {
	if e.ollama == nil {
		return output
	}

	prompt := fmt.Sprintf("The user asked: %s\n\nA script produced this output:\n%s\n\nAnswer the user's question using the output. Be brief and direct.",
		sanitize.HardenPromptInput(query), output)
	if extra := e.fetchContext(ctx, query); extra != "" {
		prompt = fmt.Sprintf("%s\n\n--- RELEVANT CONTEXT ---\n%s\n--- END CONTEXT ---", prompt, extra)
	}

	wrapped, err := e.ollama.Generate(ctx, prompt, "")
	if err != nil || strings.TrimSpace(wrapped) == "" {
		logger.G(ctx).WithError(err).Debug("response wrap skipped")
		return output
	}
	return wrapped
}

func (e *Executor) fetchContext(ctx context.Context, query string) string {
	if e.rag == nil {
		return ""
	}
	return e.rag.Context(ctx, query, ragContextTokens)
}

// findBannedCommand returns the first command word matching a banned
// pattern, or an empty string when the script is clean.
func (e *Executor) findBannedCommand(script string) string {
	if len(e.bannedGlobs) == 0 {
		return ""
	}

	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, segment := range splitCommands(line) {
			fields := strings.Fields(segment)
			if len(fields) == 0 {
				continue
			}
			word := filepath.Base(fields[0])
			for _, g := range e.bannedGlobs {
				if g.Match(word) {
					return word
				}
			}
		}
	}
	return ""
}

func splitCommands(line string) []string {
	segments := []string{line}
	for _, op := range []string{"&&", "||", ";", "|"} {
		var next []string
		for _, segment := range segments {
			next = append(next, strings.Split(segment, op)...)
		}
		segments = next
	}
	return segments
}
