package classify

import (
	"reflect"
	"testing"

	"github.com/starford/codeintel/internal/models"
)

func entity(path string, deps ...string) *models.Entity {
	if deps == nil {
		deps = []string{}
	}
	return &models.Entity{
		Path:         path,
		Dependencies: deps,
		ExternalDeps: []string{},
		PlannedDeps:  []string{},
		UsedBy:       []string{},
	}
}

func sampleSet() models.EntitySet {
	return models.EntitySet{
		"tasks": {
			"create-story":   entity("tasks/create-story.md", "story-tmpl.yaml", "git", "future-thing"),
			"validate-story": entity("tasks/validate-story.md", "create-story"),
		},
		"templates": {
			"story-tmpl": entity("templates/story-tmpl.yaml"),
		},
		"agents": {
			"dev": entity("agents/dev.md", "create-story", "validate-story", "Docker"),
		},
	}
}

var order = []string{"tasks", "templates", "agents"}

func TestBuildNameIndex_RegistersIDFileAndStem(t *testing.T) {
	idx := BuildNameIndex(sampleSet(), order)
	want := models.Ref{Category: "templates", ID: "story-tmpl"}
	for _, name := range []string{"story-tmpl", "story-tmpl.yaml"} {
		if got, ok := idx.Lookup(name); !ok || got != want {
			t.Errorf("Lookup(%q) = %v, %v", name, got, ok)
		}
	}
}

func TestBuildNameIndex_FirstCategoryWins(t *testing.T) {
	set := models.EntitySet{
		"tasks":   {"shared": entity("tasks/shared.md")},
		"scripts": {"shared": entity("scripts/shared.js")},
	}
	idx := BuildNameIndex(set, []string{"tasks", "scripts"})
	if got, _ := idx.Lookup("shared"); got.Category != "tasks" {
		t.Errorf("shared owned by %q, want tasks", got.Category)
	}
	idx = BuildNameIndex(set, []string{"scripts", "tasks"})
	if got, _ := idx.Lookup("shared"); got.Category != "scripts" {
		t.Errorf("shared owned by %q, want scripts", got.Category)
	}
}

func TestClassify_Partition(t *testing.T) {
	set := sampleSet()
	stats := Classify(set, BuildNameIndex(set, order))

	cs := set["tasks"]["create-story"]
	if !reflect.DeepEqual(cs.Dependencies, []string{"story-tmpl"}) {
		t.Errorf("internal = %v", cs.Dependencies)
	}
	if !reflect.DeepEqual(cs.ExternalDeps, []string{"git"}) {
		t.Errorf("external = %v", cs.ExternalDeps)
	}
	if !reflect.DeepEqual(cs.PlannedDeps, []string{"future-thing"}) {
		t.Errorf("planned = %v", cs.PlannedDeps)
	}

	dev := set["agents"]["dev"]
	if !reflect.DeepEqual(dev.ExternalDeps, []string{"Docker"}) {
		t.Errorf("external match must be case-insensitive: %v", dev.ExternalDeps)
	}

	want := Stats{Internal: 4, External: 2, Planned: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestClassify_PartitionCompleteness(t *testing.T) {
	set := sampleSet()
	before := map[string]int{}
	set.Walk(order, func(ref models.Ref, e *models.Entity) { before[ref.Key()] = e.ReferenceCount() })

	Run(set, order)
	Run(set, order)

	set.Walk(order, func(ref models.Ref, e *models.Entity) {
		if got := e.ReferenceCount(); got != before[ref.Key()] {
			t.Errorf("%s: %d references after classification, want %d", ref.Key(), got, before[ref.Key()])
		}
	})
}

func TestResolveUsedBy(t *testing.T) {
	set := sampleSet()
	Run(set, order)

	got := set["tasks"]["create-story"].UsedBy
	if !reflect.DeepEqual(got, []string{"validate-story", "dev"}) {
		t.Errorf("create-story usedBy = %v", got)
	}
	if got := set["templates"]["story-tmpl"].UsedBy; !reflect.DeepEqual(got, []string{"create-story"}) {
		t.Errorf("story-tmpl usedBy = %v", got)
	}
}

func TestResolveUsedBy_Idempotent(t *testing.T) {
	set := sampleSet()
	idx := BuildNameIndex(set, order)
	Classify(set, idx)
	ResolveUsedBy(set, idx, order)
	first := append([]string(nil), set["tasks"]["create-story"].UsedBy...)
	ResolveUsedBy(set, idx, order)
	if got := set["tasks"]["create-story"].UsedBy; !reflect.DeepEqual(got, first) {
		t.Errorf("second pass = %v, first = %v", got, first)
	}
}

func TestResolveUsedBy_NoDuplicates(t *testing.T) {
	set := models.EntitySet{
		"tasks": {
			"a": entity("tasks/a.md", "b", "b.md"),
			"b": entity("tasks/b.md"),
		},
	}
	Run(set, []string{"tasks"})
	if got := set["tasks"]["b"].UsedBy; !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("usedBy = %v", got)
	}
	if got := set["tasks"]["a"].Dependencies; !reflect.DeepEqual(got, []string{"b", "b"}) {
		t.Errorf("dependencies = %v, want both references rewritten to b", got)
	}
}

func TestResolveUsedBy_FollowsResolvedTarget(t *testing.T) {
	set := models.EntitySet{
		"tasks":     {"create-doc": entity("tasks/create-doc.md")},
		"templates": {"create-doc": entity("templates/create-doc.yaml")},
		"scripts":   {"runner": entity("scripts/runner.js", "create-doc.yaml")},
	}
	order := []string{"tasks", "templates", "scripts"}
	Run(set, order)

	if got := set["scripts"]["runner"].Dependencies; !reflect.DeepEqual(got, []string{"create-doc"}) {
		t.Errorf("runner dependencies = %v", got)
	}
	if got := set["templates"]["create-doc"].UsedBy; !reflect.DeepEqual(got, []string{"runner"}) {
		t.Errorf("template usedBy = %v, want [runner]", got)
	}
	if got := set["tasks"]["create-doc"].UsedBy; len(got) != 0 {
		t.Errorf("task usedBy = %v, want none", got)
	}
	if got := set["templates"]["create-doc"].Lifecycle; got != models.LifecycleProduction {
		t.Errorf("template lifecycle = %q", got)
	}
	if got := set["tasks"]["create-doc"].Lifecycle; got != models.LifecycleOrphan {
		t.Errorf("task lifecycle = %q", got)
	}

	// A second pass keeps the edge on the template.
	Run(set, order)
	if got := set["templates"]["create-doc"].UsedBy; !reflect.DeepEqual(got, []string{"runner"}) {
		t.Errorf("template usedBy after rerun = %v", got)
	}
}

func TestLifecycle(t *testing.T) {
	cases := []struct {
		name string
		id   string
		e    *models.Entity
		want string
	}{
		{"deprecated name beats usage", "old-handler", &models.Entity{UsedBy: []string{"x"}}, models.LifecycleDeprecated},
		{"backup prefix", "backup_config", &models.Entity{}, models.LifecycleDeprecated},
		{"legacy prefix", "legacy-auth", &models.Entity{}, models.LifecycleDeprecated},
		{"deprecated substring", "auth-DEPRECATED", &models.Entity{}, models.LifecycleDeprecated},
		{"override wins", "old-thing", &models.Entity{LifecycleOverride: "production"}, "production"},
		{"used", "handler", &models.Entity{UsedBy: []string{"x"}}, models.LifecycleProduction},
		{"orphan", "lonely", &models.Entity{}, models.LifecycleOrphan},
		{"planned only", "dreamer", &models.Entity{PlannedDeps: []string{"x"}}, models.LifecycleExperimental},
		{"has dependencies", "worker", &models.Entity{Dependencies: []string{"a"}}, models.LifecycleExperimental},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Lifecycle(tc.id, tc.e); got != tc.want {
				t.Errorf("Lifecycle(%q) = %q, want %q", tc.id, got, tc.want)
			}
		})
	}
}

func TestAssignLifecycles_ConsumesOverride(t *testing.T) {
	set := models.EntitySet{"tasks": {"a": entity("tasks/a.md")}}
	set["tasks"]["a"].LifecycleOverride = "production"
	AssignLifecycles(set)
	e := set["tasks"]["a"]
	if e.Lifecycle != "production" || e.LifecycleOverride != "" {
		t.Errorf("lifecycle = %q, override = %q", e.Lifecycle, e.LifecycleOverride)
	}
}

func TestResolutionRate(t *testing.T) {
	cases := []struct {
		stats Stats
		want  int
	}{
		{Stats{}, 0},
		{Stats{Internal: 4, External: 2, Planned: 1}, 80},
		{Stats{Internal: 2, Planned: 1}, 67},
		{Stats{External: 5}, 0},
	}
	for _, tc := range cases {
		if got := tc.stats.ResolutionRate(); got != tc.want {
			t.Errorf("%+v rate = %d, want %d", tc.stats, got, tc.want)
		}
	}
}
