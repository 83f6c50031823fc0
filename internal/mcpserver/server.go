// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the registry query tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/codeintel/internal/apperr"
	"github.com/starford/codeintel/internal/graphfmt"
	"github.com/starford/codeintel/internal/intel"
)

// FormatResourceURI names the registry format resource.
const FormatResourceURI = "codeintel://registry-format"

// Server wraps the MCP server with the query tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *intel.Service
	tools []string
}

// New creates a new MCP server with all query tools registered.
// search_entities is only registered when svc has a mirror.
func New(svc *intel.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"codeintel",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.addTool(mcp.NewTool("find_definition",
		mcp.WithDescription("Find the file that defines an entity (task, template, agent, script...). "+
			"Matches exact ids first, then case-insensitive ids, path fragments and keywords."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Entity id, file name or path fragment")),
		mcp.WithString("type", mcp.Description("Optional entity type hint (task, template, agent, ...)")),
	), s.findDefinition)

	s.addTool(mcp.NewTool("find_references",
		mcp.WithDescription("List the entities that depend on or are used by the given entity."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Entity id")),
	), s.findReferences)

	s.addTool(mcp.NewTool("analyze_dependencies",
		mcp.WithDescription("Walk the dependency graph reachable from a path or entity id."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Repository-relative path or entity id")),
		mcp.WithString("format", mcp.Description("json (default), dot or mermaid")),
	), s.analyzeDependencies)

	s.addTool(mcp.NewTool("analyze_codebase",
		mcp.WithDescription("Per-category entity counts, layer distribution and naming conventions."),
		mcp.WithString("path", mcp.Description("Optional path prefix to restrict the analysis")),
	), s.analyzeCodebase)

	s.addTool(mcp.NewTool("project_stats",
		mcp.WithDescription("File extension and layer distribution over all registered entities."),
	), s.projectStats)

	if svc.HasMirror() {
		s.addTool(mcp.NewTool("search_entities",
			mcp.WithDescription("Search entity ids, purposes and keywords."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
			mcp.WithNumber("limit", mcp.Description("Max results (default: 20)")),
		), s.searchEntities)
	}

	for _, name := range []string{"find_callers", "find_callees"} {
		s.addTool(mcp.NewTool(name,
			mcp.WithDescription("Not supported: the registry holds file-level references, not call sites."),
			mcp.WithString("symbol", mcp.Description("Function or entity name")),
		), s.unsupported)
	}
	s.addTool(mcp.NewTool("analyze_complexity",
		mcp.WithDescription("Not supported: the registry is built from text heuristics, not a parser."),
		mcp.WithString("target", mcp.Description("Path or entity id")),
	), s.unsupported)

	s.mcp.AddResource(
		mcp.NewResource(FormatResourceURI, "Registry Format",
			mcp.WithResourceDescription("Schema of the persisted entity registry document."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.tools = append(s.tools, tool.Name)
	s.mcp.AddTool(tool, handler)
}

// Tools returns the registered tool names in registration order.
func (s *Server) Tools() []string {
	return s.tools
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// result turns a query outcome into a tool result. Not-found and unavailable
// are ordinary answers, not tool errors.
func result(v any, err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultText("no matching entity found"), nil
	case errors.Is(err, apperr.ErrUnavailable):
		return mcp.NewToolResultText("registry unavailable: run `codeintel build` first"), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) findDefinition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return result(s.svc.Definition(ctx, symbol, req.GetString("type", "")))
}

func (s *Server) findReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return result(s.svc.References(ctx, symbol))
}

func (s *Server) analyzeDependencies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	switch format := req.GetString("format", ""); format {
	case "", "json":
		return result(s.svc.Dependencies(ctx, target))
	case graphfmt.FormatDOT, graphfmt.FormatMermaid:
		out, err := s.svc.RenderDependencies(ctx, target, format)
		if err != nil {
			return result(nil, err)
		}
		return mcp.NewToolResultText(out), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q: use json, dot or mermaid", format)), nil
	}
}

func (s *Server) analyzeCodebase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(s.svc.Codebase(ctx, req.GetString("path", "")))
}

func (s *Server) projectStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(s.svc.Stats(ctx))
}

func (s *Server) searchEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, q, intArg(req, "limit", intel.DefaultSearchLimit))
	if err != nil {
		return result(nil, err)
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matching entity found"), nil
	}
	return result(results, nil)
}

func (s *Server) unsupported(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(req.Params.Name + ": " + apperr.ErrUnsupported.Error() +
		" (entities carry file-level dependencies only)"), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatResourceURI,
			MIMEType: "text/markdown",
			Text:     RegistryFormat,
		},
	}, nil
}

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}
