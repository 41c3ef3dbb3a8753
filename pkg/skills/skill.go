// Package skills provides the on-disk skill library: discovery and parsing
// of SKILL.md definitions, an in-memory registry with deterministic trigger
// matching, and atomic reload. Skills are packaged as directories containing
// a SKILL.md file with YAML frontmatter describing the skill's purpose,
// triggers, and execution mode.
package skills

import (
	"regexp"
	"time"

	"github.com/pkg/errors"
)

// SkillFileName is the definition file looked for in each skill directory
const SkillFileName = "SKILL.md"

// ExecutionMode discriminates the two skill variants
type ExecutionMode string

const (
	// ModeBash runs an embedded script in the sandbox and wraps its stdout
	ModeBash ExecutionMode = "bash"
	// ModeOllama sends the skill body to the local model with the user
	// query substituted at $ARGUMENTS
	ModeOllama ExecutionMode = "ollama"
)

// BashSpec holds the bash-variant fields
type BashSpec struct {
	Script  string
	Timeout time.Duration
}

// OllamaSpec holds the instruction-variant fields. Body contains the
// $ARGUMENTS substitution point, or the arguments are appended if absent.
type OllamaSpec struct {
	Body string
}

// Skill is a named, reusable unit of capability. Exactly one of Bash or
// Ollama is set, matching Mode.
type Skill struct {
	Name        string
	Description string
	// Triggers are lowercase substrings matched case-insensitively against
	// queries, in declared order.
	Triggers []string
	Mode     ExecutionMode
	Bash     *BashSpec
	Ollama   *OllamaSpec
	// Content is the full definition body with frontmatter stripped.
	Content string
	// Path is the SKILL.md file this definition was loaded from.
	Path string
}

// namePattern: alphanumeric-bounded, interior [A-Za-z0-9_-], 3-50 chars total.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{1,48}[A-Za-z0-9]$`)

// ValidateName rejects skill names that could not safely become a directory
// name under the skills root.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return errors.Errorf("invalid skill name %q: must be 3-50 chars, start/end alphanumeric, interior [A-Za-z0-9_-]", name)
	}
	return nil
}
