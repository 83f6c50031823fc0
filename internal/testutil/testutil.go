// Package testutil provides shared test helpers for repositories, registry
// documents and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/codeintel/internal/index"
	"github.com/starford/codeintel/internal/models"
	"github.com/starford/codeintel/internal/registry"
	"github.com/starford/codeintel/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "codeintel-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRepo creates a temporary repository root with a storage.FS over it.
func TestRepo(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// WriteFile writes content at the slash-separated rel path under root.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Entity returns a classified entity fixture with the given internal
// dependencies.
func Entity(path string, layer models.Layer, deps ...string) *models.Entity {
	if deps == nil {
		deps = []string{}
	}
	return &models.Entity{
		Path:         path,
		Layer:        layer,
		Type:         "task",
		Purpose:      "Fixture at " + path,
		Keywords:     []string{},
		UsedBy:       []string{},
		Dependencies: deps,
		ExternalDeps: []string{},
		PlannedDeps:  []string{},
		Lifecycle:    models.LifecycleExperimental,
		Adaptability: models.Adaptability{Score: 0.5, Constraints: []string{}, ExtensionPoints: []string{}},
		Checksum:     "sha256:0",
		LastVerified: "2026-01-01T00:00:00Z",
	}
}

// Document wraps set into a registry document whose categories are listed in
// order.
func Document(set models.EntitySet, order ...string) *models.Document {
	categories := make([]models.Category, 0, len(order))
	for _, c := range order {
		categories = append(categories, models.Category{ID: c, Description: c, BasePath: c})
	}
	return registry.Assemble(set, categories, 100, time.Now())
}

// WriteRegistry persists doc at abs.
func WriteRegistry(t *testing.T, abs string, doc *models.Document) {
	t.Helper()
	if err := registry.Save(abs, doc); err != nil {
		t.Fatalf("write registry: %v", err)
	}
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
