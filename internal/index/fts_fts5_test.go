//go:build sqlite_fts5

package index

import (
	"testing"

	"github.com/starford/codeintel/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entities_fts`).Scan(&count); err != nil {
		t.Fatalf("entities_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	if err := db.Replace(sampleDoc()); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != ".aios-core/development/tasks/create-story.md" {
		t.Errorf("path = %q", results[0].Path)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_ReplaceDropsOldContent(t *testing.T) {
	db := testDB(t)
	_ = db.Replace(sampleDoc())
	_ = db.Replace(&models.Document{Entities: models.EntitySet{
		"tasks": {"evo": {Path: "tasks/evo.md", Purpose: "replacement text"}},
	}})

	results, _ := db.Search("uniqueword", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].ID != "evo" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
