package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/codeintel/internal"
	pkgconfig "github.com/starford/codeintel/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root := cmd.String("root"); root != "" {
		cfg.Repo.Root = root
	}
	return cfg, nil
}

func withConfig(fn func(ctx context.Context, cmd *cli.Command, opts []internal.Option) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return fn(ctx, cmd, []internal.Option{internal.WithConfig(cfg)})
	}
}

func queryCommand(name, usage, argName string, extra ...cli.Flag) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: argName,
		Flags:     extra,
		Action: withConfig(func(ctx context.Context, cmd *cli.Command, opts []internal.Option) error {
			arg := cmd.Args().First()
			if argName != "" && arg == "" && name != internal.QueryCodebase {
				return fmt.Errorf("%s: missing %s", name, argName)
			}
			req := internal.QueryRequest{Op: name, Arg: arg}
			if cmd.IsSet("type") {
				req.Type = cmd.String("type")
			}
			if cmd.IsSet("format") {
				req.Format = cmd.String("format")
			}
			return internal.Query(ctx, req, opts...)
		}),
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "codeintel",
		Usage:   "Entity registry builder and code-intelligence queries for agent framework repositories",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Usage:   "Repository root (overrides repo.root)",
				Sources: cli.EnvVars("CODEINTEL_ROOT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Scan the repository and write the entity registry",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Rebuild when group directories change"},
				},
				Action: withConfig(func(ctx context.Context, cmd *cli.Command, opts []internal.Option) error {
					return internal.Build(ctx, cmd.Bool("watch"), opts...)
				}),
			},
			{
				Name:  "serve",
				Usage: "Serve the HTTP query API",
				Action: withConfig(func(ctx context.Context, _ *cli.Command, opts []internal.Option) error {
					return internal.Run(ctx, opts...)
				}),
			},
			{
				Name:  "mcp",
				Usage: "Serve the query tools over MCP stdio",
				Action: withConfig(func(ctx context.Context, _ *cli.Command, opts []internal.Option) error {
					return internal.ServeMCP(ctx, version, opts...)
				}),
			},
			{
				Name:  "doctor",
				Usage: "Check registry freshness and query engine health",
				Action: withConfig(func(ctx context.Context, _ *cli.Command, opts []internal.Option) error {
					return internal.Doctor(ctx, opts...)
				}),
			},
			{
				Name:  "query",
				Usage: "Query the persisted registry",
				Commands: []*cli.Command{
					queryCommand(internal.QueryDefinition, "Find where an entity is defined", "<symbol>",
						&cli.StringFlag{Name: "type", Usage: "Entity type hint (task, template, agent, ...)"}),
					queryCommand(internal.QueryReferences, "List entities referring to a symbol", "<symbol>"),
					queryCommand(internal.QueryDeps, "Dependency graph reachable from a path or entity id", "<target>",
						&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "json, dot or mermaid"}),
					queryCommand(internal.QueryCodebase, "Per-category structure and conventions", "[path]"),
					queryCommand(internal.QueryStats, "Project statistics", ""),
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
