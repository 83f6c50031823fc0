// Package intel is the query facade shared by the HTTP API and the MCP server.
// It combines the file-backed query engine with the optional SQLite mirror.
package intel

import (
	"context"

	"github.com/starford/codeintel/internal/apperr"
	"github.com/starford/codeintel/internal/graphfmt"
	"github.com/starford/codeintel/internal/index"
	"github.com/starford/codeintel/internal/query"
)

// DefaultSearchLimit caps search results when the caller gives no limit.
const DefaultSearchLimit = 20

// EntityDetail is one mirrored entity with its typed edges and dependents.
type EntityDetail struct {
	index.EntityRow
	Edges      []index.Edge      `json:"edges"`
	Dependents []index.EntityRef `json:"dependents"`
}

// Service coordinates engine and mirror operations.
type Service struct {
	engine *query.Engine
	mirror index.EntityIndex
}

// NewService creates a new service. mirror may be nil.
func NewService(engine *query.Engine, mirror index.EntityIndex) *Service {
	return &Service{engine: engine, mirror: mirror}
}

// Engine returns the underlying query engine.
func (s *Service) Engine() *query.Engine {
	return s.engine
}

// Available reports whether a registry document is loaded.
func (s *Service) Available() bool {
	return s.engine.Available()
}

// HasMirror reports whether mirror-backed operations are configured.
func (s *Service) HasMirror() bool {
	return s.mirror != nil
}

// Definition finds the best-ranked entity for symbol. typ is an optional
// entity type hint.
func (s *Service) Definition(_ context.Context, symbol, typ string) (*query.Definition, error) {
	return s.engine.FindDefinition(symbol, query.Hints{Type: typ})
}

// References lists the entities referring to symbol.
func (s *Service) References(_ context.Context, symbol string) ([]query.Reference, error) {
	return s.engine.FindReferences(symbol)
}

// Dependencies returns the dependency graph reachable from target.
func (s *Service) Dependencies(_ context.Context, target string) (*query.DependencyGraph, error) {
	return s.engine.AnalyzeDependencies(target)
}

// RenderDependencies returns the dependency graph of target as DOT or Mermaid.
func (s *Service) RenderDependencies(ctx context.Context, target, format string) (string, error) {
	g, err := s.Dependencies(ctx, target)
	if err != nil {
		return "", err
	}
	return graphfmt.Render(format, g)
}

// Codebase aggregates the registry, optionally under a path prefix.
func (s *Service) Codebase(_ context.Context, prefix string) (*query.Codebase, error) {
	return s.engine.AnalyzeCodebase(prefix)
}

// Stats returns the project statistics.
func (s *Service) Stats(_ context.Context) (*query.ProjectStats, error) {
	return s.engine.ProjectStats()
}

// Search runs a purpose/keyword search over the mirror.
func (s *Service) Search(_ context.Context, q string, limit int) ([]index.SearchResult, error) {
	if s.mirror == nil {
		return nil, apperr.ErrUnavailable
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	results, err := s.mirror.Search(q, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(results), nil
}

// Entity returns one mirrored entity with its edges and dependents.
func (s *Service) Entity(_ context.Context, category, id string) (*EntityDetail, error) {
	if s.mirror == nil {
		return nil, apperr.ErrUnavailable
	}
	row, err := s.mirror.Get(category, id)
	if err != nil {
		return nil, err
	}
	edges, err := s.mirror.Edges(category, id)
	if err != nil {
		return nil, err
	}
	dependents, err := s.mirror.Dependents(id)
	if err != nil {
		return nil, err
	}
	row.Keywords = nonNilSlice(row.Keywords)
	return &EntityDetail{
		EntityRow:  *row,
		Edges:      nonNilSlice(edges),
		Dependents: nonNilSlice(dependents),
	}, nil
}

// Callers is not answerable from the registry.
func (s *Service) Callers(_ context.Context, symbol string) error {
	return s.engine.FindCallers(symbol)
}

// Callees is not answerable from the registry.
func (s *Service) Callees(_ context.Context, symbol string) error {
	return s.engine.FindCallees(symbol)
}

// Complexity is not answerable from the registry.
func (s *Service) Complexity(_ context.Context, target string) error {
	return s.engine.AnalyzeComplexity(target)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
