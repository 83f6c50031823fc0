// Package classify resolves raw entity references against the whole entity
// set: internal/external/planned partition, reverse usedBy edges, lifecycle
// states and the resolution rate.
package classify

import (
	"math"
	"path"
	"regexp"
	"strings"

	"github.com/starford/codeintel/internal/models"
)

// ExternalTools are tool and service names that are never expected to exist
// as entities in the scanned repository.
var ExternalTools = map[string]struct{}{
	"coderabbit": {}, "git": {}, "github-cli": {}, "docker": {}, "supabase": {}, "browser": {},
	"ffmpeg": {}, "n8n": {}, "context7": {}, "playwright": {}, "apify": {}, "clickup": {},
	"jira": {}, "slack": {}, "exa": {}, "eslint": {}, "jest": {}, "npm": {}, "node": {},
	"docker-gateway": {}, "desktop-commander": {}, "railway": {},
}

// DeprecatedPatterns mark entity ids as deprecated by name alone.
var DeprecatedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^old[-_]`),
	regexp.MustCompile(`^backup[-_]`),
	regexp.MustCompile(`(?i)deprecated`),
	regexp.MustCompile(`^legacy[-_]`),
}

// IsExternal reports whether ref names a known external tool.
func IsExternal(ref string) bool {
	_, ok := ExternalTools[strings.ToLower(ref)]
	return ok
}

// NameIndex maps entity id, file name and file stem to the entity that first
// registered the name.
type NameIndex map[string]models.Ref

// BuildNameIndex registers every entity in category order. On collision the
// first registration wins, so earlier categories own ambiguous bare names.
func BuildNameIndex(set models.EntitySet, order []string) NameIndex {
	idx := make(NameIndex)
	register := func(name string, ref models.Ref) {
		if name == "" {
			return
		}
		if _, taken := idx[name]; !taken {
			idx[name] = ref
		}
	}
	set.Walk(order, func(ref models.Ref, e *models.Entity) {
		register(ref.ID, ref)
		if e.Path == "" {
			return
		}
		file := path.Base(e.Path)
		register(file, ref)
		register(strings.TrimSuffix(file, path.Ext(file)), ref)
	})
	return idx
}

// Lookup returns the entity registered under name.
func (idx NameIndex) Lookup(name string) (models.Ref, bool) {
	ref, ok := idx[name]
	return ref, ok
}

// Stats counts references after forward classification.
type Stats struct {
	Internal int `json:"internal"`
	External int `json:"external"`
	Planned  int `json:"planned"`
}

// ResolutionRate is the rounded percentage of internal+planned references
// that resolved to an entity. Zero when there are none.
func (s Stats) ResolutionRate() int {
	total := s.Internal + s.Planned
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(s.Internal) / float64(total) * 100))
}

// Classify partitions every entity's raw references. Internal references are
// rewritten to the canonical id of their target; the three partitions always
// add up to the raw reference count.
func Classify(set models.EntitySet, idx NameIndex) Stats {
	var stats Stats
	set.Walk(nil, func(_ models.Ref, e *models.Entity) {
		raw := append(append(append([]string{}, e.Dependencies...), e.ExternalDeps...), e.PlannedDeps...)
		prior := e.Resolved
		if len(prior) != len(e.Dependencies) {
			prior = nil
		}
		internal := make([]string, 0, len(raw))
		resolved := make([]models.Ref, 0, len(raw))
		external := make([]string, 0)
		planned := make([]string, 0)
		for i, dep := range raw {
			// A dependency already rewritten to a canonical id keeps its target.
			if i < len(prior) && prior[i].ID == dep {
				internal = append(internal, dep)
				resolved = append(resolved, prior[i])
			} else if target, ok := idx.Lookup(dep); ok {
				internal = append(internal, target.ID)
				resolved = append(resolved, target)
			} else if IsExternal(dep) {
				external = append(external, dep)
			} else {
				planned = append(planned, dep)
			}
		}
		e.Dependencies = internal
		e.Resolved = resolved
		e.ExternalDeps = external
		e.PlannedDeps = planned
		stats.Internal += len(internal)
		stats.External += len(external)
		stats.Planned += len(planned)
	})
	return stats
}

// ResolveUsedBy recomputes every usedBy list from scratch out of the internal
// dependencies, so running it twice yields identical lists. Each edge goes to
// the entity the dependency resolved to during Classify; idx is only consulted
// for entities that were never classified.
func ResolveUsedBy(set models.EntitySet, idx NameIndex, order []string) {
	set.Walk(order, func(_ models.Ref, e *models.Entity) {
		e.UsedBy = []string{}
	})
	set.Walk(order, func(ref models.Ref, e *models.Entity) {
		resolved := len(e.Resolved) == len(e.Dependencies)
		for i, dep := range e.Dependencies {
			var target models.Ref
			if resolved {
				target = e.Resolved[i]
			} else {
				var ok bool
				if target, ok = idx.Lookup(dep); !ok {
					continue
				}
			}
			t := set.Get(target)
			if t == nil || containsString(t.UsedBy, ref.ID) {
				continue
			}
			t.UsedBy = append(t.UsedBy, ref.ID)
		}
	})
}

// Lifecycle decides the lifecycle of one entity. The rules are an ordered
// decision list: override, deprecated name, used, orphan, experimental.
func Lifecycle(id string, e *models.Entity) string {
	if e.LifecycleOverride != "" {
		return e.LifecycleOverride
	}
	for _, re := range DeprecatedPatterns {
		if re.MatchString(id) {
			return models.LifecycleDeprecated
		}
	}
	if len(e.UsedBy) > 0 {
		return models.LifecycleProduction
	}
	if e.ReferenceCount() == 0 {
		return models.LifecycleOrphan
	}
	return models.LifecycleExperimental
}

// AssignLifecycles sets the lifecycle of every entity and consumes any
// override marker.
func AssignLifecycles(set models.EntitySet) {
	set.Walk(nil, func(ref models.Ref, e *models.Entity) {
		e.Lifecycle = Lifecycle(ref.ID, e)
		e.LifecycleOverride = ""
	})
}

// Run executes the full pass in order: name index, forward classification,
// reverse edges, lifecycle. order is the configured category order.
func Run(set models.EntitySet, order []string) Stats {
	idx := BuildNameIndex(set, order)
	stats := Classify(set, idx)
	ResolveUsedBy(set, idx, order)
	AssignLifecycles(set)
	return stats
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
