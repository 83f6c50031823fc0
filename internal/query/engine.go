// Package query answers definition, reference, dependency and statistics
// questions from the persisted registry document.
//
// The engine caches one parsed document keyed by the file's modification time
// and size. Every entry point checks the stamp first and, when it changed,
// rebuilds the indices and swaps them in with a single atomic store, so
// readers never observe a half-built snapshot.
package query

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/codeintel/internal/apperr"
	"github.com/starford/codeintel/internal/models"
	"github.com/starford/codeintel/internal/registry"
)

// Record is one entity with its identity inside the document.
type Record struct {
	ID       string
	Category string
	*models.Entity
}

// Key returns the composite "category:id" key.
func (r *Record) Key() string {
	return r.Category + ":" + r.ID
}

type stamp struct {
	modTime time.Time
	size    int64
	exists  bool
}

// snapshot is immutable once published.
type snapshot struct {
	stamp stamp
	doc   *models.Document
	err   error

	byID       map[string][]*Record
	byPath     map[string]*Record
	byCategory map[string][]*Record
	byKeyword  map[string][]*Record
	categories []string
	// paths lists byPath keys in lexicographic order.
	paths []string
}

func (s *snapshot) available() bool {
	return s != nil && s.doc != nil && len(s.byID) > 0
}

// Engine is safe for concurrent use.
type Engine struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex // serialises reloads
	snap atomic.Pointer[snapshot]
}

// New creates an engine over the registry document at path. Nothing is read
// until the first query.
func New(path string, logger *slog.Logger) *Engine {
	return &Engine{path: path, logger: logger}
}

// Path returns the backing document path.
func (e *Engine) Path() string {
	return e.path
}

func statFile(path string) (stamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stamp{}, nil
		}
		return stamp{}, err
	}
	return stamp{modTime: info.ModTime(), size: info.Size(), exists: true}, nil
}

// current returns the snapshot matching the file on disk, reloading if the
// stamp changed since the last load.
func (e *Engine) current() *snapshot {
	st, err := statFile(e.path)
	if err == nil {
		if s := e.snap.Load(); s != nil && s.stamp == st {
			return s
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Another caller may have reloaded while we waited.
	st, err = statFile(e.path)
	if err == nil {
		if s := e.snap.Load(); s != nil && s.stamp == st {
			return s
		}
	}
	s := e.load(st, err)
	e.snap.Store(s)
	return s
}

// Reload forces a re-read of the document and reports whether the engine is
// available afterwards.
func (e *Engine) Reload() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := statFile(e.path)
	s := e.load(st, err)
	e.snap.Store(s)
	return s.available()
}

func (e *Engine) load(st stamp, statErr error) *snapshot {
	if statErr != nil {
		e.logger.Warn("query: stat registry failed", slog.String("path", e.path), slog.String("error", statErr.Error()))
		// A zero stamp never matches, so the next call retries.
		return &snapshot{err: statErr}
	}
	if !st.exists {
		e.logger.Debug("query: registry not found", slog.String("path", e.path))
		return &snapshot{stamp: st, err: fs.ErrNotExist}
	}

	doc, err := registry.Load(e.path)
	if err != nil {
		e.logger.Warn("query: registry unavailable", slog.String("path", e.path), slog.String("error", err.Error()))
		return &snapshot{stamp: st, err: err}
	}
	s := buildSnapshot(doc)
	s.stamp = st
	e.logger.Debug("query: registry loaded",
		slog.String("path", e.path),
		slog.Int("entities", len(s.byPath)),
		slog.Int("categories", len(s.categories)))
	return s
}

// categoryOrder returns the document's declared category order.
func categoryOrder(doc *models.Document) []string {
	order := make([]string, 0, len(doc.Entities))
	for _, c := range doc.Categories {
		order = append(order, c.ID)
	}
	return order
}

func buildSnapshot(doc *models.Document) *snapshot {
	s := &snapshot{
		doc:        doc,
		byID:       make(map[string][]*Record),
		byPath:     make(map[string]*Record),
		byCategory: make(map[string][]*Record),
		byKeyword:  make(map[string][]*Record),
	}
	for category := range doc.Entities {
		s.byCategory[category] = []*Record{}
	}

	doc.Entities.Walk(categoryOrder(doc), func(ref models.Ref, e *models.Entity) {
		if e == nil || strings.Contains(e.Path, "..") {
			return
		}
		r := &Record{ID: ref.ID, Category: ref.Category, Entity: e}
		s.byID[ref.ID] = append(s.byID[ref.ID], r)
		if e.Path != "" {
			s.byPath[e.Path] = r
		}
		s.byCategory[ref.Category] = append(s.byCategory[ref.Category], r)
		for _, kw := range e.Keywords {
			kw = strings.ToLower(kw)
			s.byKeyword[kw] = append(s.byKeyword[kw], r)
		}
	})

	s.categories = make([]string, 0, len(s.byCategory))
	seen := make(map[string]struct{})
	for _, c := range categoryOrder(doc) {
		if _, ok := s.byCategory[c]; ok {
			if _, dup := seen[c]; !dup {
				seen[c] = struct{}{}
				s.categories = append(s.categories, c)
			}
		}
	}
	var rest []string
	for c := range s.byCategory {
		if _, ok := seen[c]; !ok {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	s.categories = append(s.categories, rest...)

	s.paths = make([]string, 0, len(s.byPath))
	for p := range s.byPath {
		s.paths = append(s.paths, p)
	}
	sort.Strings(s.paths)
	return s
}

// Available reports whether a document is loaded and holds at least one entity.
func (e *Engine) Available() bool {
	return e.current().available()
}

// Document returns the loaded document.
func (e *Engine) Document() (*models.Document, error) {
	s := e.current()
	if s.doc == nil {
		return nil, apperr.ErrUnavailable
	}
	return s.doc, nil
}
