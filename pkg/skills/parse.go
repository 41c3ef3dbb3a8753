package skills

import (
	"bytes"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

var scriptBlockPattern = regexp.MustCompile("(?s)```(?:bash|sh)\n(.*?)```")

// ParseSkillFile loads a single skill definition from its SKILL.md file
func ParseSkillFile(path string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}
	return ParseSkill(path, content)
}

// ParseSkill parses a SKILL.md definition. The path is recorded as
// provenance only; callers validating unsaved content may pass "".
func ParseSkill(path string, content []byte) (*Skill, error) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return nil, errors.New("missing frontmatter")
	}

	name, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)

	if name == "" {
		return nil, errors.New("skill name is required in frontmatter")
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if description == "" {
		return nil, errors.New("skill description is required in frontmatter")
	}

	skill := &Skill{
		Name:        name,
		Description: description,
		Triggers:    parseTriggers(metaData["triggers"]),
		Content:     extractBodyContent(string(content)),
		Path:        path,
	}

	mode, _ := metaData["execution_mode"].(string)
	switch ExecutionMode(mode) {
	case ModeBash:
		skill.Mode = ModeBash
		script, ok := extractScript(skill.Content)
		if !ok {
			return nil, errors.New("bash skill is missing a fenced script block")
		}
		skill.Bash = &BashSpec{
			Script:  script,
			Timeout: parseTimeout(metaData["timeout"]),
		}
	case ModeOllama, "":
		// Instruction skills are the default when no mode is declared.
		skill.Mode = ModeOllama
		skill.Ollama = &OllamaSpec{Body: skill.Content}
	default:
		return nil, errors.Errorf("unknown execution_mode %q", mode)
	}

	return skill, nil
}

// parseTriggers normalizes the frontmatter triggers list to lowercase,
// preserving declared order.
func parseTriggers(raw interface{}) []string {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	triggers := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			triggers = append(triggers, s)
		}
	}
	return triggers
}

// parseTimeout reads the bash-mode timeout in seconds, zero when absent.
// goldmark-meta yields YAML integers as int.
func parseTimeout(raw interface{}) time.Duration {
	if secs, ok := raw.(int); ok && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// extractScript returns the first fenced bash script block from the body
func extractScript(body string) (string, bool) {
	m := scriptBlockPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	script := strings.TrimSpace(m[1])
	if script == "" {
		return "", false
	}
	return script, true
}

// extractBodyContent removes YAML frontmatter and returns the body
func extractBodyContent(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}
	if frontmatterEnd == -1 {
		return content
	}

	return strings.TrimLeft(strings.Join(lines[frontmatterEnd+1:], "\n"), "\n")
}
