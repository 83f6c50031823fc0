package builder

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/codeintel/internal/classify"
	"github.com/starford/codeintel/internal/query"
	"github.com/starford/codeintel/internal/registry"
	"github.com/starford/codeintel/internal/scanner"
	"github.com/starford/codeintel/internal/storage"
	"github.com/starford/codeintel/internal/testutil"
)

var testGroups = []scanner.Group{
	{Category: "tasks", BasePath: ".aios-core/development/tasks", Pattern: "**/*.md", Type: "task", CrossRefs: true,
		Description: "Executable task workflows"},
	{Category: "data", BasePath: ".aios-core/data", Pattern: "**/*.{yaml,yml,md}", Type: "data",
		Description: "Reference data"},
	{Category: "checklists", BasePath: ".aios-core/development/checklists", Pattern: "**/*.md", Type: "checklist",
		Description: "Review checklists"},
}

func fixtureRepo(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root, store := testutil.TestRepo(t)
	testutil.WriteFile(t, root, ".aios-core/development/tasks/create-story.md",
		"# Create Story\n\n## Purpose\n\nDraft a story.\n\n- validate-story.md\n- ghost-task.md\n")
	testutil.WriteFile(t, root, ".aios-core/development/tasks/validate-story.md",
		"# Validate Story\n\nChecks drafted stories.\n")
	testutil.WriteFile(t, root, ".aios-core/data/kb.md", "# Knowledge Base\n")
	return root, store
}

func options(root string, store storage.Provider) Options {
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	return Options{
		Root:    root,
		Store:   store,
		Groups:  testGroups,
		Workers: 2,
		Logger:  testutil.Logger(),
		Now:     func() time.Time { return fixed },
	}
}

func TestRun_WritesQueryableRegistry(t *testing.T) {
	root, store := fixtureRepo(t)

	rep, err := Run(context.Background(), options(root, store))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Total != 3 {
		t.Errorf("total = %d, want 3", rep.Total)
	}
	if rep.Stats != (classify.Stats{Internal: 1, Planned: 1}) {
		t.Errorf("stats = %+v", rep.Stats)
	}
	if rep.ResolutionRate != 50 {
		t.Errorf("resolution rate = %d, want 50", rep.ResolutionRate)
	}
	if len(rep.Groups) != 3 || rep.Groups[0].Category != "tasks" || rep.Groups[0].Entities != 2 {
		t.Errorf("groups = %+v", rep.Groups)
	}
	if !rep.Groups[2].Missing {
		t.Error("checklists group should be reported missing")
	}
	if rep.Warnings == 0 {
		t.Error("missing directory should count as a warning")
	}

	doc, err := registry.Load(filepath.Join(root, filepath.FromSlash(registry.DefaultPath)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Metadata.EntityCount != 3 || doc.Metadata.ResolutionRate != 50 {
		t.Errorf("metadata = %+v", doc.Metadata)
	}
	if doc.Metadata.LastUpdated != "2026-03-04T05:06:07Z" {
		t.Errorf("lastUpdated = %q", doc.Metadata.LastUpdated)
	}
	if _, ok := doc.Entities["checklists"]; !ok {
		t.Error("empty configured category must still be listed")
	}
	if len(doc.Categories) != 3 || doc.Categories[1].ID != "data" {
		t.Errorf("categories = %+v", doc.Categories)
	}

	validate := doc.Entities["tasks"]["validate-story"]
	if len(validate.UsedBy) != 1 || validate.UsedBy[0] != "create-story" {
		t.Errorf("usedBy = %v", validate.UsedBy)
	}

	engine := query.New(filepath.Join(root, filepath.FromSlash(registry.DefaultPath)), testutil.Logger())
	def, err := engine.FindDefinition("create-story", query.Hints{})
	if err != nil {
		t.Fatalf("FindDefinition: %v", err)
	}
	if def.File != ".aios-core/development/tasks/create-story.md" {
		t.Errorf("definition = %+v", def)
	}
}

func TestRun_RegistryFileNotScanned(t *testing.T) {
	root, store := fixtureRepo(t)
	opts := options(root, store)

	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	rep, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Total != 3 {
		t.Errorf("total after rebuild = %d, want 3", rep.Total)
	}
	doc, err := registry.Load(filepath.Join(root, filepath.FromSlash(registry.DefaultPath)))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Entities["data"]["entity-registry"]; ok {
		t.Error("registry document indexed as an entity")
	}
}

func TestRun_CustomRegistryPath(t *testing.T) {
	root, store := fixtureRepo(t)
	opts := options(root, store)
	opts.RegistryPath = "./.aios-core/data/custom.yaml"

	rep, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Path != ".aios-core/data/custom.yaml" {
		t.Errorf("path = %q", rep.Path)
	}
	if _, err := store.Stat(".aios-core/data/custom.yaml"); err != nil {
		t.Errorf("custom registry not written: %v", err)
	}
	rep, err = Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Total != 3 {
		t.Errorf("total = %d, want 3", rep.Total)
	}
}

type failingWriter struct {
	storage.Provider
}

func (failingWriter) Write(string, []byte) error {
	return errors.New("disk full")
}

func TestRun_WriteFailureReturned(t *testing.T) {
	root, store := fixtureRepo(t)

	_, err := Run(context.Background(), options(root, failingWriter{store}))
	if err == nil {
		t.Fatal("expected write error")
	}
}

func TestRun_InvalidGroup(t *testing.T) {
	root, store := fixtureRepo(t)
	opts := options(root, store)
	opts.Groups = []scanner.Group{{Category: "tasks", BasePath: "x", Pattern: "[", Type: "task"}}

	if _, err := Run(context.Background(), opts); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	root, store := fixtureRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, options(root, store)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRun_CarriesInvocationExamples(t *testing.T) {
	root, store := fixtureRepo(t)
	opts := options(root, store)
	abs := filepath.Join(root, filepath.FromSlash(registry.DefaultPath))

	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	doc, err := registry.Load(abs)
	if err != nil {
		t.Fatal(err)
	}
	doc.Entities["tasks"]["create-story"].InvocationExamples = []string{"*create-story 1.2"}
	testutil.WriteRegistry(t, abs, doc)

	rep, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Carried != 1 {
		t.Errorf("carried = %d, want 1", rep.Carried)
	}
	doc, err = registry.Load(abs)
	if err != nil {
		t.Fatal(err)
	}
	got := doc.Entities["tasks"]["create-story"].InvocationExamples
	if len(got) != 1 || got[0] != "*create-story 1.2" {
		t.Errorf("examples = %v", got)
	}
}

func TestRun_MalformedPreviousRegistryIsWarning(t *testing.T) {
	root, store := fixtureRepo(t)
	testutil.WriteFile(t, root, registry.DefaultPath, "entities: [unclosed\n")

	rep, err := Run(context.Background(), options(root, store))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Carried != 0 || rep.Total != 3 {
		t.Errorf("report = %+v", rep)
	}
}

func TestRun_PopulatesMirror(t *testing.T) {
	root, store := fixtureRepo(t)
	db := testutil.TestDB(t)
	opts := options(root, store)
	opts.Mirror = db

	rep, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Mirrored {
		t.Error("report should mark the mirror as updated")
	}
	n, err := db.Count()
	if err != nil || n != 3 {
		t.Errorf("mirror count = %d, %v", n, err)
	}
	deps, err := db.Dependents("validate-story")
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 1 || deps[0].ID != "create-story" {
		t.Errorf("dependents = %+v", deps)
	}
	rate, _ := db.Meta("resolutionRate")
	if rate != "50" {
		t.Errorf("mirrored resolution rate = %q", rate)
	}
}

func TestRun_MirrorFailureIsWarning(t *testing.T) {
	root, store := fixtureRepo(t)
	db := testutil.TestDB(t)
	db.Close()
	opts := options(root, store)
	opts.Mirror = db

	rep, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("mirror failure must not fail the build: %v", err)
	}
	if rep.Mirrored {
		t.Error("closed mirror reported as updated")
	}
}

func TestWatch_RebuildsOnChange(t *testing.T) {
	root, store := fixtureRepo(t)
	opts := options(root, store)
	opts.Now = time.Now

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var totals []int
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, opts, func(rep *Report, err error) {
			if err != nil {
				return
			}
			mu.Lock()
			totals = append(totals, rep.Total)
			mu.Unlock()
		})
	}()

	time.Sleep(100 * time.Millisecond)
	testutil.WriteFile(t, root, ".aios-core/development/tasks/new-task.md", "# New Task\n")

	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, n := range totals {
			if n == 4 {
				return true
			}
		}
		return false
	}, "watcher did not rebuild after a new task file")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch did not stop after cancel")
	}
}

func TestWatch_NeedsRoot(t *testing.T) {
	_, store := fixtureRepo(t)
	opts := options("", store)
	if err := Watch(context.Background(), opts, nil); err == nil {
		t.Fatal("expected error without root")
	}
}
