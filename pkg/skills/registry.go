package skills

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/securebot-ai/securebot/pkg/logger"
)

// Registry is the in-memory skill index. Lookups read an immutable snapshot;
// Reload builds a fresh snapshot and swaps it in one pointer store, so a
// concurrent reader observes either the fully-old or fully-new registry and
// never a partially-populated one.
type Registry struct {
	dir      string
	snapshot atomic.Pointer[index]
}

type triggerEntry struct {
	trigger string
	skill   *Skill
}

type index struct {
	byName map[string]*Skill
	// ordered holds skills in registration order (sorted directory name),
	// which makes trigger tie-breaking deterministic across reloads.
	ordered  []*Skill
	triggers []triggerEntry
}

// NewRegistry creates a registry over the given skills root. The registry
// starts empty; call Reload to populate it.
func NewRegistry(dir string) *Registry {
	r := &Registry{dir: dir}
	r.snapshot.Store(&index{byName: map[string]*Skill{}})
	return r
}

// Dir returns the skills root this registry loads from
func (r *Registry) Dir() string {
	return r.dir
}

// Reload clears and rebuilds the full index from disk. A missing skills
// directory yields an empty registry, not an error. Malformed individual
// skills are logged and skipped; one bad skill never aborts the load of the
// rest.
func (r *Registry) Reload(ctx context.Context) error {
	log := logger.G(ctx)

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("dir", r.dir).Debug("skills directory missing, registry empty")
			r.snapshot.Store(&index{byName: map[string]*Skill{}})
			return nil
		}
		return err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		// Follow symlinked skill directories too.
		info, err := os.Stat(filepath.Join(r.dir, entry.Name()))
		if err != nil || !info.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	idx := &index{byName: make(map[string]*Skill, len(names))}
	for _, dirName := range names {
		skillPath := filepath.Join(r.dir, dirName, SkillFileName)
		if _, err := os.Stat(skillPath); err != nil {
			continue
		}

		skill, err := ParseSkillFile(skillPath)
		if err != nil {
			log.WithError(err).WithField("path", skillPath).Warn("skipping malformed skill")
			continue
		}

		if _, exists := idx.byName[skill.Name]; exists {
			log.WithField("name", skill.Name).Warn("duplicate skill name, keeping first")
			continue
		}

		idx.byName[skill.Name] = skill
		idx.ordered = append(idx.ordered, skill)
		for _, trigger := range skill.Triggers {
			idx.triggers = append(idx.triggers, triggerEntry{trigger: trigger, skill: skill})
		}
	}

	r.snapshot.Store(idx)
	log.WithField("count", len(idx.ordered)).Info("skill registry loaded")
	return nil
}

// Get returns the skill registered under name, or nil if absent
func (r *Registry) Get(name string) *Skill {
	return r.snapshot.Load().byName[name]
}

// FindByTrigger scans registered triggers in registration order and returns
// the first skill whose trigger appears as a case-insensitive substring of
// the query. First match wins; there is no ranking. Returns nil when no
// trigger matches.
func (r *Registry) FindByTrigger(query string) *Skill {
	query = strings.ToLower(query)
	for _, entry := range r.snapshot.Load().triggers {
		if strings.Contains(query, entry.trigger) {
			return entry.skill
		}
	}
	return nil
}

// List returns all registered skills in registration order
func (r *Registry) List() []*Skill {
	ordered := r.snapshot.Load().ordered
	out := make([]*Skill, len(ordered))
	copy(out, ordered)
	return out
}

// Len returns the number of registered skills
func (r *Registry) Len() int {
	return len(r.snapshot.Load().ordered)
}
