package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/starford/codeintel/internal/apperr"
	"github.com/starford/codeintel/internal/builder"
	"github.com/starford/codeintel/internal/doctor"
	"github.com/starford/codeintel/internal/graphfmt"
	"github.com/starford/codeintel/internal/intel"
	"github.com/starford/codeintel/internal/mcpserver"
	"github.com/starford/codeintel/internal/query"
)

// ErrUnhealthy is returned by Doctor when a check failed.
var ErrUnhealthy = errors.New("doctor: registry unhealthy")

// NotFoundMessage is printed when a query resolves to nothing.
const NotFoundMessage = "no matching entity found"

func (rt *env) builderOptions() (builder.Options, error) {
	store, err := rt.store()
	if err != nil {
		return builder.Options{}, err
	}
	return builder.Options{
		Root:         rt.root,
		Store:        store,
		Groups:       rt.cfg.Scan.Groups,
		RegistryPath: rt.cfg.Registry.Path,
		Workers:      rt.cfg.Repo.Workers,
		Mirror:       rt.mirrorIndex(),
		Logger:       rt.logger,
	}, nil
}

// Build scans the repository and writes the registry. With watch set it keeps
// rebuilding after changes until ctx is cancelled.
func Build(ctx context.Context, watch bool, opts ...Option) error {
	app := newApplication(os.Stderr, opts)
	rt, err := app.setup()
	if err != nil {
		return err
	}
	if err := rt.openMirror(); err != nil {
		return err
	}
	defer rt.close()

	bopts, err := rt.builderOptions()
	if err != nil {
		return err
	}

	rep, err := builder.Run(ctx, bopts)
	if err != nil {
		return err
	}
	if err := writeJSON(app.out, rep); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	ctx, stop := signalContext(ctx)
	defer stop()
	return builder.Watch(ctx, bopts, func(rep *builder.Report, err error) {
		if err == nil {
			_ = writeJSON(app.out, rep)
		}
	})
}

// ServeMCP serves the query tools over stdio. Logs go to stderr because
// stdout carries the protocol.
func ServeMCP(_ context.Context, version string, opts ...Option) error {
	app := newApplication(os.Stderr, opts)
	rt, err := app.setup()
	if err != nil {
		return err
	}
	if err := rt.openMirror(); err != nil {
		return err
	}
	defer rt.close()

	engine := query.New(rt.registryPath, rt.logger)
	rt.syncMirror(engine)

	srv := mcpserver.New(intel.NewService(engine, rt.mirrorIndex()), version)
	rt.logger.Info("MCP server starting on stdio", slog.Int("tools", len(srv.Tools())))
	return srv.ServeStdio()
}

// Doctor prints the health report and returns ErrUnhealthy when a check failed.
func Doctor(_ context.Context, opts ...Option) error {
	app := newApplication(os.Stderr, opts)
	rt, err := app.setup()
	if err != nil {
		return err
	}
	engine := query.New(rt.registryPath, rt.logger)
	rep := doctor.Run(rt.registryPath, time.Now(), engine)
	if err := writeJSON(app.out, rep); err != nil {
		return err
	}
	if !rep.Healthy {
		return ErrUnhealthy
	}
	return nil
}

// Query operations.
const (
	QueryDefinition = "definition"
	QueryReferences = "references"
	QueryDeps       = "deps"
	QueryCodebase   = "codebase"
	QueryStats      = "stats"
)

// QueryRequest is one CLI query against the registry.
type QueryRequest struct {
	Op string
	// Arg is the symbol, target or path prefix depending on Op.
	Arg    string
	Type   string
	Format string
}

// Query answers one query from the persisted registry. Not-found and
// unavailable are printed as messages, not returned as errors.
func Query(ctx context.Context, req QueryRequest, opts ...Option) error {
	app := newApplication(os.Stderr, opts)
	rt, err := app.setup()
	if err != nil {
		return err
	}
	svc := intel.NewService(query.New(rt.registryPath, rt.logger), nil)

	var v any
	switch req.Op {
	case QueryDefinition:
		v, err = svc.Definition(ctx, req.Arg, req.Type)
	case QueryReferences:
		v, err = svc.References(ctx, req.Arg)
	case QueryDeps:
		switch req.Format {
		case "", "json":
			v, err = svc.Dependencies(ctx, req.Arg)
		case graphfmt.FormatDOT, graphfmt.FormatMermaid:
			var out string
			out, err = svc.RenderDependencies(ctx, req.Arg, req.Format)
			if err == nil {
				_, err = fmt.Fprintln(app.out, out)
				return err
			}
		default:
			return fmt.Errorf("query: unknown format %q: use json, dot or mermaid", req.Format)
		}
	case QueryCodebase:
		v, err = svc.Codebase(ctx, req.Arg)
	case QueryStats:
		v, err = svc.Stats(ctx)
	default:
		return fmt.Errorf("query: unknown operation %q", req.Op)
	}

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		_, err = fmt.Fprintln(app.out, NotFoundMessage)
		return err
	case errors.Is(err, apperr.ErrUnavailable):
		_, err = fmt.Fprintln(app.out, "registry unavailable: run `codeintel build` first")
		return err
	case err != nil:
		return err
	}
	return writeJSON(app.out, v)
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
