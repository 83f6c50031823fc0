// Package scanner walks directory groups and turns each matching file into a
// registry entity with heuristically extracted purpose, keywords and raw
// dependency references.
package scanner

import (
	"context"
	"log/slog"
	"path"
	"time"

	"github.com/starford/codeintel/internal/checksum"
	"github.com/starford/codeintel/internal/layer"
	"github.com/starford/codeintel/internal/models"
	"github.com/starford/codeintel/internal/parser"
	"github.com/starford/codeintel/internal/storage"
)

// GroupReport summarises the scan of one group.
type GroupReport struct {
	Category   string   `json:"category"`
	Entities   int      `json:"entities"`
	Duplicates int      `json:"duplicates"`
	Missing    bool     `json:"missing,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

func (r *GroupReport) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Scanner extracts entities through a storage.Provider.
type Scanner struct {
	store   storage.Provider
	logger  *slog.Logger
	now     func() time.Time
	exclude map[string]struct{}
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithClock sets the time source used for lastVerified.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithExclude skips the given repository-relative paths.
func WithExclude(paths ...string) Option {
	return func(s *Scanner) {
		for _, p := range paths {
			s.exclude[layer.Normalize(p)] = struct{}{}
		}
	}
}

// New creates a Scanner.
func New(store storage.Provider, logger *slog.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		store:   store,
		logger:  logger,
		now:     time.Now,
		exclude: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EntityID is the file name without its extension.
func EntityID(filePath string) string {
	return stem(filePath)
}

// ScanGroup scans one directory group. Per-file problems are logged and
// recorded in the report; they never abort the group. The only error returned
// is ctx cancellation.
func (s *Scanner) ScanGroup(ctx context.Context, g Group) (map[string]*models.Entity, GroupReport, error) {
	report := GroupReport{Category: g.Category}
	entities := make(map[string]*models.Entity)
	log := s.logger.With(slog.String("category", g.Category))

	files, err := s.store.List(g.BasePath, g.Pattern)
	if err != nil {
		if storage.IsNotExist(err) {
			report.Missing = true
			report.warn("directory not found: " + g.BasePath)
			log.Warn("scan: directory not found", slog.String("path", g.BasePath))
		} else {
			report.warn("list failed: " + err.Error())
			log.Warn("scan: list failed", slog.String("path", g.BasePath), slog.String("error", err.Error()))
		}
		return entities, report, nil
	}

	verified := s.now().UTC().Format(time.RFC3339)

	// files is sorted, so the first-wins duplicate rule is reproducible.
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		if _, skip := s.exclude[rel]; skip {
			continue
		}

		id := EntityID(rel)
		if _, dup := entities[id]; dup {
			report.Duplicates++
			report.warn("duplicate entity id " + id + " at " + rel)
			log.Warn("scan: duplicate entity id", slog.String("id", id), slog.String("path", rel))
			continue
		}

		data, err := s.store.Read(rel)
		if err != nil {
			report.warn("could not read " + rel)
			log.Warn("scan: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}

		entities[id] = s.buildEntity(g, id, rel, data, verified, &report, log)
	}

	report.Entities = len(entities)
	return entities, report, nil
}

func (s *Scanner) buildEntity(g Group, id, rel string, data []byte, verified string, report *GroupReport, log *slog.Logger) *models.Entity {
	content := string(data)
	res := parser.Parse(data)
	if res.FrontmatterErr != nil {
		report.warn("malformed front matter in " + rel)
		log.Warn("scan: malformed front matter", slog.String("path", rel), slog.String("error", res.FrontmatterErr.Error()))
	}

	refs := newRefSet(id, func(ref, reason string) {
		log.Debug("scan: filtered reference", slog.String("id", id), slog.String("ref", ref), slog.String("reason", reason))
	})
	refs.add(GenericReferences(content)...)
	refs.add(DependencyBlock(content)...)

	if g.Embedded {
		fields, err := DecodeEmbedded(g.Type, rel, content)
		if err != nil {
			report.warn("embedded structure parse failed in " + rel)
			log.Warn("scan: embedded structure skipped", slog.String("path", rel), slog.String("error", err.Error()))
		} else if fields != nil {
			refs.add(fields.References()...)
		}
	}
	if g.CrossRefs {
		refs.add(CrossReferences(content)...)
	}

	e := &models.Entity{
		Path:         rel,
		Layer:        layer.Classify(rel),
		Type:         g.Type,
		Purpose:      Purpose(content, rel),
		Keywords:     Keywords(path.Base(rel), res.Heading),
		UsedBy:       []string{},
		Dependencies: refs.list(),
		ExternalDeps: []string{},
		PlannedDeps:  []string{},
		Lifecycle:    models.LifecycleExperimental,
		Adaptability: models.Adaptability{
			Score:           AdaptabilityScore(g.Type),
			Constraints:     []string{},
			ExtensionPoints: []string{},
		},
		Checksum:     checksum.Sum(data),
		LastVerified: verified,
	}
	if v, source := LifecycleOverride(res, content); v != "" {
		e.LifecycleOverride = v
		log.Debug("scan: lifecycle override", slog.String("id", id), slog.String("value", v), slog.String("source", source))
	}
	return e
}

// refSet is an insertion-ordered set of filtered references.
type refSet struct {
	self     string
	seen     map[string]struct{}
	items    []string
	filtered func(ref, reason string)
}

func newRefSet(self string, filtered func(ref, reason string)) *refSet {
	return &refSet{self: self, seen: make(map[string]struct{}), filtered: filtered}
}

func (r *refSet) add(refs ...string) {
	for _, ref := range refs {
		switch {
		case ref == r.self:
			continue
		case IsSentinel(ref):
			r.filtered(ref, "sentinel")
			continue
		case IsNoise(ref):
			r.filtered(ref, "noise")
			continue
		}
		if _, dup := r.seen[ref]; dup {
			continue
		}
		r.seen[ref] = struct{}{}
		r.items = append(r.items, ref)
	}
}

func (r *refSet) list() []string {
	if r.items == nil {
		return []string{}
	}
	return r.items
}
