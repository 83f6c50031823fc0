package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/starford/codeintel/internal/apperr"
	"github.com/starford/codeintel/internal/models"
)

// Edge kinds mirror the three reference partitions.
const (
	KindInternal = "internal"
	KindExternal = "external"
	KindPlanned  = "planned"
)

// EntityRow represents a row in the entities table.
type EntityRow struct {
	Category     string   `json:"category"`
	ID           string   `json:"id"`
	Path         string   `json:"path"`
	Layer        string   `json:"layer"`
	Type         string   `json:"type"`
	Purpose      string   `json:"purpose"`
	Keywords     []string `json:"keywords"`
	Lifecycle    string   `json:"lifecycle"`
	Checksum     string   `json:"checksum"`
	LastVerified string   `json:"lastVerified"`
}

// EntityRef names an entity.
type EntityRef struct {
	Category string `json:"category"`
	ID       string `json:"id"`
	Path     string `json:"path"`
}

// Edge is one classified outgoing reference.
type Edge struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Category string `json:"category"`
	ID       string `json:"id"`
	Path     string `json:"path"`
	Snippet  string `json:"snippet"`
}

// Replace clears the mirror and loads doc in one transaction.
func (db *DB) Replace(doc *models.Document) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, stmt := range []string{`DELETE FROM edges`, `DELETE FROM entities`, `DELETE FROM meta`} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("index: clear: %w", err)
		}
	}
	if err := ftsClear(tx); err != nil {
		return err
	}

	insEntity, err := tx.Prepare(`
		INSERT INTO entities (category, id, path, layer, type, purpose, keywords, lifecycle, checksum, last_verified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare entity insert: %w", err)
	}
	defer insEntity.Close()

	insEdge, err := tx.Prepare(`INSERT OR IGNORE INTO edges (source_category, source, target, kind) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare edge insert: %w", err)
	}
	defer insEdge.Close()

	var walkErr error
	doc.Entities.Walk(nil, func(ref models.Ref, e *models.Entity) {
		if walkErr != nil || e == nil {
			return
		}
		keywords, _ := json.Marshal(e.Keywords)
		if _, err := insEntity.Exec(ref.Category, ref.ID, e.Path, string(e.Layer), e.Type, e.Purpose,
			string(keywords), e.Lifecycle, e.Checksum, e.LastVerified); err != nil {
			walkErr = fmt.Errorf("index: insert entity %s: %w", ref.Key(), err)
			return
		}
		if err := ftsInsert(tx, ref.Category, ref.ID, e.Path, e.Purpose, e.Keywords); err != nil {
			walkErr = err
			return
		}
		for kind, targets := range map[string][]string{
			KindInternal: e.Dependencies,
			KindExternal: e.ExternalDeps,
			KindPlanned:  e.PlannedDeps,
		} {
			for _, target := range targets {
				if _, err := insEdge.Exec(ref.Category, ref.ID, target, kind); err != nil {
					walkErr = fmt.Errorf("index: insert edge %s -> %s: %w", ref.Key(), target, err)
					return
				}
			}
		}
	})
	if walkErr != nil {
		return walkErr
	}

	meta := map[string]string{
		"version":        doc.Metadata.Version,
		"lastUpdated":    doc.Metadata.LastUpdated,
		"entityCount":    strconv.Itoa(doc.Metadata.EntityCount),
		"resolutionRate": strconv.Itoa(doc.Metadata.ResolutionRate),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("index: insert meta: %w", err)
		}
	}

	return tx.Commit()
}

// Get returns one entity row.
func (db *DB) Get(category, id string) (*EntityRow, error) {
	var r EntityRow
	var keywords string
	err := db.conn.QueryRow(`
		SELECT category, id, path, layer, type, purpose, keywords, lifecycle, checksum, last_verified
		FROM entities WHERE category = ? AND id = ?
	`, category, id).Scan(&r.Category, &r.ID, &r.Path, &r.Layer, &r.Type, &r.Purpose, &keywords,
		&r.Lifecycle, &r.Checksum, &r.LastVerified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get entity: %w", err)
	}
	_ = json.Unmarshal([]byte(keywords), &r.Keywords)
	return &r, nil
}

// Dependents returns the entities holding an internal edge to id.
func (db *DB) Dependents(id string) ([]EntityRef, error) {
	rows, err := db.conn.Query(`
		SELECT e.category, e.id, e.path
		FROM edges d
		JOIN entities e ON e.category = d.source_category AND e.id = d.source
		WHERE d.target = ? AND d.kind = 'internal'
		ORDER BY e.category, e.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("index: dependents: %w", err)
	}
	defer rows.Close()

	var out []EntityRef
	for rows.Next() {
		var r EntityRef
		if err := rows.Scan(&r.Category, &r.ID, &r.Path); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Edges returns every classified reference of one entity.
func (db *DB) Edges(category, id string) ([]Edge, error) {
	rows, err := db.conn.Query(`
		SELECT target, kind FROM edges
		WHERE source_category = ? AND source = ?
		ORDER BY kind, target
	`, category, id)
	if err != nil {
		return nil, fmt.Errorf("index: edges: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Target, &e.Kind); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of mirrored entities.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// Meta returns a metadata value of the last mirrored document, or empty.
func (db *DB) Meta(key string) (string, error) {
	var v string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: meta: %w", err)
	}
	return v, nil
}
