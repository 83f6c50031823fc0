package index

import "github.com/starford/codeintel/internal/models"

// EntityIndex defines the mirror operations. Consumers should depend on this
// interface rather than the concrete *DB type.
type EntityIndex interface {
	Replace(doc *models.Document) error
	Get(category, id string) (*EntityRow, error)
	Dependents(id string) ([]EntityRef, error)
	Edges(category, id string) ([]Edge, error)
	Search(query string, limit int) ([]SearchResult, error)
	Count() (int, error)
	Meta(key string) (string, error)
	Close() error
}

// Verify *DB satisfies EntityIndex at compile time.
var _ EntityIndex = (*DB)(nil)
