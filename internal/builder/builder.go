// Package builder runs the full registry build: concurrent group scans, the
// classification passes, persistence and the optional SQLite mirror.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/codeintel/internal/classify"
	"github.com/starford/codeintel/internal/index"
	"github.com/starford/codeintel/internal/layer"
	"github.com/starford/codeintel/internal/models"
	"github.com/starford/codeintel/internal/registry"
	"github.com/starford/codeintel/internal/scanner"
	"github.com/starford/codeintel/internal/storage"
)

// Options configures one build.
type Options struct {
	// Root is the absolute repository root. Only Watch needs it.
	Root  string
	Store storage.Provider
	// Groups default to scanner.DefaultGroups.
	Groups []scanner.Group
	// RegistryPath is repository-relative; defaults to registry.DefaultPath.
	RegistryPath string
	// Workers bounds concurrent group scans; <= 0 uses GOMAXPROCS.
	Workers int
	// Mirror, when set, receives the built document.
	Mirror index.EntityIndex
	Logger *slog.Logger
	Now    func() time.Time
}

func (o *Options) defaults() {
	if o.Groups == nil {
		o.Groups = scanner.DefaultGroups()
	}
	if o.RegistryPath == "" {
		o.RegistryPath = registry.DefaultPath
	}
	o.RegistryPath = layer.Normalize(o.RegistryPath)
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Report summarises a build.
type Report struct {
	Groups         []scanner.GroupReport `json:"groups"`
	Total          int                   `json:"total"`
	Duplicates     int                   `json:"duplicates"`
	Warnings       int                   `json:"warnings"`
	ResolutionRate int                   `json:"resolutionRate"`
	Stats          classify.Stats        `json:"stats"`
	Carried        int                   `json:"carriedExamples"`
	Mirrored       bool                  `json:"mirrored"`
	Path           string                `json:"path"`
	Duration       time.Duration         `json:"duration"`
}

// Run builds and persists the registry. Per-file and per-group problems end
// up in the report; only cancellation, invalid groups and a failed write are
// returned as errors.
func Run(ctx context.Context, opts Options) (*Report, error) {
	opts.defaults()
	if opts.Store == nil {
		return nil, errors.New("builder: no storage provider")
	}
	start := opts.Now()
	log := opts.Logger

	order := make([]string, len(opts.Groups))
	categories := make([]models.Category, len(opts.Groups))
	for i, g := range opts.Groups {
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("builder: group %q: %w", g.Category, err)
		}
		order[i] = g.Category
		categories[i] = models.Category{ID: g.Category, Description: g.Description, BasePath: g.BasePath}
	}

	sc := scanner.New(opts.Store, log,
		scanner.WithExclude(opts.RegistryPath),
		scanner.WithClock(opts.Now))

	// Each slot is written by exactly one goroutine; Wait is the join point.
	results := make([]map[string]*models.Entity, len(opts.Groups))
	reports := make([]scanner.GroupReport, len(opts.Groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, group := range opts.Groups {
		g.Go(func() error {
			entities, rep, err := sc.ScanGroup(gctx, group)
			if err != nil {
				return err
			}
			results[i] = entities
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("builder: scan: %w", err)
	}

	set := make(models.EntitySet, len(opts.Groups))
	rep := &Report{Groups: reports, Path: opts.RegistryPath}
	for i, group := range opts.Groups {
		// Two groups sharing a category merge; the earlier group wins an id.
		bucket := set[group.Category]
		if bucket == nil {
			bucket = make(map[string]*models.Entity, len(results[i]))
			set[group.Category] = bucket
		}
		for id, e := range results[i] {
			if _, dup := bucket[id]; dup {
				rep.Duplicates++
				continue
			}
			bucket[id] = e
		}
		rep.Duplicates += reports[i].Duplicates
		rep.Warnings += len(reports[i].Warnings)
	}

	if prev, err := opts.Store.Read(opts.RegistryPath); err == nil {
		n, carryErr := registry.CarryExamples(prev, set)
		if carryErr != nil {
			rep.Warnings++
			log.Warn("build: previous registry unreadable, examples not carried",
				slog.String("path", opts.RegistryPath), slog.String("error", carryErr.Error()))
		}
		rep.Carried = n
	} else if !storage.IsNotExist(err) {
		rep.Warnings++
		log.Warn("build: read previous registry failed",
			slog.String("path", opts.RegistryPath), slog.String("error", err.Error()))
	}

	stats := classify.Run(set, order)
	rep.Stats = stats
	rep.ResolutionRate = stats.ResolutionRate()

	doc := registry.Assemble(set, categories, rep.ResolutionRate, opts.Now())
	rep.Total = doc.Metadata.EntityCount

	data, err := registry.Encode(doc)
	if err != nil {
		return nil, err
	}
	if err := opts.Store.Write(opts.RegistryPath, data); err != nil {
		return nil, fmt.Errorf("registry: write %s: %w", opts.RegistryPath, err)
	}

	if opts.Mirror != nil {
		if err := opts.Mirror.Replace(doc); err != nil {
			rep.Warnings++
			log.Warn("build: mirror update failed", slog.String("error", err.Error()))
		} else {
			rep.Mirrored = true
		}
	}

	rep.Duration = opts.Now().Sub(start)
	log.Info("build: registry written",
		slog.String("path", opts.RegistryPath),
		slog.Int("entities", rep.Total),
		slog.Int("resolution_rate", rep.ResolutionRate),
		slog.Int("duplicates", rep.Duplicates),
		slog.Int("warnings", rep.Warnings),
		slog.Duration("duration", rep.Duration))
	return rep, nil
}
