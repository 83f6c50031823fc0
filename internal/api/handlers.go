package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/codeintel/internal/apperr"
	"github.com/starford/codeintel/internal/graphfmt"
	"github.com/starford/codeintel/internal/intel"
)

// Handler holds API route handlers.
type Handler struct {
	svc *intel.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *intel.Service) *Handler {
	return &Handler{svc: svc}
}

// writeError maps the query sentinels to HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("registry unavailable"))
	case errors.Is(err, apperr.ErrUnsupported):
		writeJSON(w, http.StatusNotImplemented, errorBody("unsupported by the registry index"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func requireParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter '"+name+"' is required"))
		return "", false
	}
	return v, true
}

// Definition handles GET /api/definition.
//
//	@Summary		Find where an entity is defined
//	@Tags			query
//	@Produce		json
//	@Param			symbol	query		string	true	"Entity id, file name or path fragment"
//	@Param			type	query		string	false	"Entity type hint"
//	@Success		200		{object}	query.Definition
//	@Failure		404		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/definition [get]
func (h *Handler) Definition(w http.ResponseWriter, r *http.Request) {
	symbol, ok := requireParam(w, r, "symbol")
	if !ok {
		return
	}
	def, err := h.svc.Definition(r.Context(), symbol, r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, "definition", err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// References handles GET /api/references.
//
//	@Summary		List entities referring to a symbol
//	@Tags			query
//	@Produce		json
//	@Param			symbol	query		string	true	"Entity id"
//	@Success		200		{object}	ReferencesResponse
//	@Failure		404		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/references [get]
func (h *Handler) References(w http.ResponseWriter, r *http.Request) {
	symbol, ok := requireParam(w, r, "symbol")
	if !ok {
		return
	}
	refs, err := h.svc.References(r.Context(), symbol)
	if err != nil {
		writeError(w, "references", err)
		return
	}
	writeJSON(w, http.StatusOK, ReferencesResponse{References: refs})
}

// Dependencies handles GET /api/dependencies.
//
//	@Summary		Dependency graph reachable from a target
//	@Tags			query
//	@Produce		json
//	@Produce		plain
//	@Param			target	query		string	true	"Path or entity id"
//	@Param			format	query		string	false	"Output format"	Enums(json, dot, mermaid)
//	@Success		200		{object}	query.DependencyGraph
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dependencies [get]
func (h *Handler) Dependencies(w http.ResponseWriter, r *http.Request) {
	target, ok := requireParam(w, r, "target")
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		g, err := h.svc.Dependencies(r.Context(), target)
		if err != nil {
			writeError(w, "dependencies", err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	case graphfmt.FormatDOT, graphfmt.FormatMermaid:
		out, err := h.svc.RenderDependencies(r.Context(), target, format)
		if err != nil {
			writeError(w, "dependencies", err)
			return
		}
		contentType := "text/plain; charset=utf-8"
		if format == graphfmt.FormatDOT {
			contentType = "text/vnd.graphviz; charset=utf-8"
		}
		writeText(w, contentType, out)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("format must be json, dot or mermaid"))
	}
}

// Codebase handles GET /api/codebase.
//
//	@Summary		Per-category structure and conventions
//	@Tags			query
//	@Produce		json
//	@Param			path	query		string	false	"Restrict to paths under this prefix"
//	@Success		200		{object}	query.Codebase
//	@Failure		404		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/codebase [get]
func (h *Handler) Codebase(w http.ResponseWriter, r *http.Request) {
	cb, err := h.svc.Codebase(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, "codebase", err)
		return
	}
	writeJSON(w, http.StatusOK, cb)
}

// Stats handles GET /api/stats.
//
//	@Summary		Project statistics
//	@Tags			query
//	@Produce		json
//	@Success		200	{object}	query.ProjectStats
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Search handles GET /api/search.
//
//	@Summary		Search entity ids, purposes and keywords
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q, ok := requireParam(w, r, "q")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		if errors.Is(err, apperr.ErrUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody("search index not configured"))
			return
		}
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Entity handles GET /api/entities/{category}/{id}.
//
//	@Summary		One mirrored entity with its edges and dependents
//	@Tags			search
//	@Produce		json
//	@Param			category	path		string	true	"Category"
//	@Param			id			path		string	true	"Entity id"
//	@Success		200			{object}	intel.EntityDetail
//	@Failure		404			{object}	errResponse
//	@Failure		503			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entities/{category}/{id} [get]
func (h *Handler) Entity(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Entity(r.Context(), chi.URLParam(r, "category"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "entity", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Available handles GET /api/available.
//
//	@Summary		Whether a registry document is loaded
//	@Tags			query
//	@Produce		json
//	@Success		200	{object}	AvailableResponse
//	@Security		BearerAuth
//	@Router			/available [get]
func (h *Handler) Available(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, AvailableResponse{Available: h.svc.Available(), Search: h.svc.HasMirror()})
}

// Callers handles GET /api/callers. Always 501.
func (h *Handler) Callers(w http.ResponseWriter, r *http.Request) {
	writeError(w, "callers", h.svc.Callers(r.Context(), r.URL.Query().Get("symbol")))
}

// Callees handles GET /api/callees. Always 501.
func (h *Handler) Callees(w http.ResponseWriter, r *http.Request) {
	writeError(w, "callees", h.svc.Callees(r.Context(), r.URL.Query().Get("symbol")))
}

// Complexity handles GET /api/complexity. Always 501.
func (h *Handler) Complexity(w http.ResponseWriter, r *http.Request) {
	writeError(w, "complexity", h.svc.Complexity(r.Context(), r.URL.Query().Get("target")))
}
