package query

import (
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/starford/codeintel/internal/apperr"
	"github.com/starford/codeintel/internal/layer"
	"github.com/starford/codeintel/internal/models"
)

// conventionThreshold is the entity count above which a category is reported
// as following a convention.
const conventionThreshold = 5

// Definition locates a symbol. Line and Column are fixed because the index
// has no source positions.
type Definition struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Context  string `json:"context"`
	ID       string `json:"id"`
	Category string `json:"category"`
	Layer    string `json:"layer"`
	Type     string `json:"type"`
}

// Reference is one entity that refers to a symbol.
type Reference struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Context string `json:"context"`
	ID      string `json:"id"`
}

// Node is a dependency graph vertex.
type Node struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Layer    string `json:"layer"`
	Category string `json:"category"`
}

// Edge is a dependency graph edge. Unresolved edges point at a name with no entity.
type Edge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Resolved bool   `json:"resolved"`
}

// DependencyGraph is the result of a breadth-first dependency traversal.
type DependencyGraph struct {
	Nodes           []Node `json:"nodes"`
	Edges           []Edge `json:"edges"`
	UnresolvedCount int    `json:"unresolvedCount"`
}

// CategoryStructure summarises one category.
type CategoryStructure struct {
	Count  int            `json:"count"`
	Layers map[string]int `json:"layers"`
}

// Pattern is an informational convention observation.
type Pattern struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Count       int    `json:"count"`
}

// Codebase is the result of AnalyzeCodebase.
type Codebase struct {
	Files     []string                     `json:"files"`
	Structure map[string]CategoryStructure `json:"structure"`
	Patterns  []Pattern                    `json:"patterns"`
}

// ProjectStats aggregates the whole registry.
type ProjectStats struct {
	Files         int            `json:"files"`
	Lines         int            `json:"lines"`
	Languages     map[string]int `json:"languages"`
	Layers        map[string]int `json:"layers"`
	Categories    int            `json:"categories"`
	TotalEntities int            `json:"totalEntities"`
}

// Status reports whether the registry file exists and, when the engine is not
// available, the reason.
func (e *Engine) Status() (exists bool, err error) {
	s := e.current()
	if s.available() {
		return true, nil
	}
	if s.err != nil {
		return s.stamp.exists, s.err
	}
	return s.stamp.exists, apperr.ErrUnavailable
}

// FindDefinition returns the best-ranked entity for symbol.
func (e *Engine) FindDefinition(symbol string, hints Hints) (*Definition, error) {
	s := e.current()
	if !s.available() {
		return nil, apperr.ErrUnavailable
	}
	candidates := s.fuzzy(symbol)
	if len(candidates) == 0 {
		return nil, apperr.ErrNotFound
	}
	best := rank(candidates, symbol, hints)[0]

	context := best.Purpose
	if context == "" {
		context = best.Type + " in " + best.Category
	}
	return &Definition{
		File:     best.Path,
		Line:     1,
		Column:   0,
		Context:  context,
		ID:       best.ID,
		Category: best.Category,
		Layer:    string(best.Layer),
		Type:     best.Type,
	}, nil
}

// FuzzyMatch exposes the scored candidate list for symbol.
func (e *Engine) FuzzyMatch(symbol string) ([]Candidate, error) {
	s := e.current()
	if !s.available() {
		return nil, apperr.ErrUnavailable
	}
	return s.fuzzy(symbol), nil
}

// FindReferences returns every entity whose usedBy or dependencies names
// symbol, plus the entities listed in the usedBy of any entity with id symbol.
// Each referencing entity is reported once.
func (e *Engine) FindReferences(symbol string) ([]Reference, error) {
	s := e.current()
	if !s.available() {
		return nil, apperr.ErrUnavailable
	}
	if symbol == "" {
		return nil, apperr.ErrNotFound
	}

	lower := strings.ToLower(symbol)
	seen := make(map[string]struct{})
	var refs []Reference
	add := func(r *Record, context string) {
		if _, dup := seen[r.Key()]; dup {
			return
		}
		seen[r.Key()] = struct{}{}
		refs = append(refs, Reference{File: r.Path, Line: 1, Context: context, ID: r.ID})
	}

	for _, c := range s.categories {
		for _, r := range s.byCategory[c] {
			if containsFold(r.UsedBy, lower) || containsFold(r.Dependencies, lower) {
				context := r.Purpose
				if context == "" {
					context = "References " + symbol
				}
				add(r, context)
			}
		}
	}

	for _, target := range s.byID[symbol] {
		for _, name := range target.UsedBy {
			for _, r := range s.byID[name] {
				add(r, r.ID+" uses "+symbol)
			}
		}
	}

	if len(refs) == 0 {
		return nil, apperr.ErrNotFound
	}
	return refs, nil
}

func containsFold(list []string, lower string) bool {
	for _, v := range list {
		if strings.ToLower(v) == lower {
			return true
		}
	}
	return false
}

// roots resolves target by path, then id, then the top fuzzy hit.
func (s *snapshot) roots(target string) []*Record {
	if r, ok := s.byPath[target]; ok {
		return []*Record{r}
	}
	if r, ok := s.byPath[layer.Normalize(target)]; ok {
		return []*Record{r}
	}
	if rs := s.byID[target]; len(rs) > 0 {
		return rs
	}
	if c := s.fuzzy(target); len(c) > 0 {
		return []*Record{c[0].Record}
	}
	return nil
}

// AnalyzeDependencies walks dependencies breadth-first from the entities
// target resolves to. Each category:id is emitted at most once, so cycles
// terminate. A dependency name resolves to the first entity with that id.
func (e *Engine) AnalyzeDependencies(target string) (*DependencyGraph, error) {
	s := e.current()
	if !s.available() {
		return nil, apperr.ErrUnavailable
	}
	if target == "" {
		return nil, apperr.ErrNotFound
	}
	roots := s.roots(target)
	if len(roots) == 0 {
		return nil, apperr.ErrNotFound
	}

	g := &DependencyGraph{Nodes: []Node{}, Edges: []Edge{}}
	visited := make(map[string]struct{})
	queue := append([]*Record(nil), roots...)

	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		if _, done := visited[r.Key()]; done {
			continue
		}
		visited[r.Key()] = struct{}{}

		g.Nodes = append(g.Nodes, Node{Name: r.ID, Path: r.Path, Layer: string(r.Layer), Category: r.Category})

		for _, dep := range r.Dependencies {
			targets := s.byID[dep]
			if len(targets) == 0 {
				g.Edges = append(g.Edges, Edge{From: r.ID, To: dep, Resolved: false})
				g.UnresolvedCount++
				continue
			}
			next := targets[0]
			g.Edges = append(g.Edges, Edge{From: r.ID, To: next.ID, Resolved: true})
			if _, done := visited[next.Key()]; !done {
				queue = append(queue, next)
			}
		}
	}
	return g, nil
}

// AnalyzeCodebase aggregates entity counts per category and layer over the
// whole registry. A prefix naming a subdirectory restricts the aggregation to
// entities whose path starts with it; "", "." and "./" mean the repository
// root and never filter.
func (e *Engine) AnalyzeCodebase(prefix string) (*Codebase, error) {
	s := e.current()
	if !s.available() {
		return nil, apperr.ErrUnavailable
	}
	prefix = layer.Normalize(prefix)
	if prefix == "." {
		prefix = ""
	}

	cb := &Codebase{
		Files:     []string{},
		Structure: make(map[string]CategoryStructure),
		Patterns:  []Pattern{},
	}
	for _, c := range s.categories {
		st := CategoryStructure{Layers: make(map[string]int)}
		for _, r := range s.byCategory[c] {
			if prefix != "" && !strings.HasPrefix(r.Path, prefix) {
				continue
			}
			st.Count++
			if r.Path != "" {
				cb.Files = append(cb.Files, r.Path)
			}
			l := string(r.Layer)
			if l == "" {
				l = "unknown"
			}
			st.Layers[l]++
		}
		if prefix != "" && st.Count == 0 {
			continue
		}
		cb.Structure[c] = st
		if st.Count > conventionThreshold {
			cb.Patterns = append(cb.Patterns, Pattern{
				Name:        c + "-convention",
				Description: strconv.Itoa(st.Count) + " " + c + " entities follow consistent structure",
				Count:       st.Count,
			})
		}
	}
	if prefix != "" && len(cb.Structure) == 0 {
		return nil, apperr.ErrNotFound
	}
	sort.Strings(cb.Files)
	return cb, nil
}

// ProjectStats reports extension and layer distributions over all entity paths.
// Lines is always zero: the index does not read source files.
func (e *Engine) ProjectStats() (*ProjectStats, error) {
	s := e.current()
	if !s.available() {
		return nil, apperr.ErrUnavailable
	}
	st := &ProjectStats{
		Files:      len(s.byPath),
		Languages:  make(map[string]int),
		Layers:     make(map[string]int, len(models.Layers)),
		Categories: len(s.byCategory),
	}
	for _, l := range models.Layers {
		st.Layers[string(l)] = 0
	}
	for _, p := range s.paths {
		r := s.byPath[p]
		if _, known := st.Layers[string(r.Layer)]; known {
			st.Layers[string(r.Layer)]++
		}
		if ext := strings.TrimPrefix(path.Ext(p), "."); ext != "" {
			st.Languages[ext]++
		}
	}
	for _, rs := range s.byID {
		st.TotalEntities += len(rs)
	}
	return st, nil
}

// FindCallers needs call-site information the registry does not hold.
func (e *Engine) FindCallers(string) error { return apperr.ErrUnsupported }

// FindCallees needs call-site information the registry does not hold.
func (e *Engine) FindCallees(string) error { return apperr.ErrUnsupported }

// AnalyzeComplexity needs a parser; the registry only has text heuristics.
func (e *Engine) AnalyzeComplexity(string) error { return apperr.ErrUnsupported }
