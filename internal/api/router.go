package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/codeintel/internal/intel"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *intel.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/available", h.Available)

	// Registry queries.
	r.Get("/definition", h.Definition)
	r.Get("/references", h.References)
	r.Get("/dependencies", h.Dependencies)
	r.Get("/codebase", h.Codebase)
	r.Get("/stats", h.Stats)

	// Mirror-backed.
	r.Get("/search", h.Search)
	r.Get("/entities/{category}/{id}", h.Entity)

	// Need a real parser.
	r.Get("/callers", h.Callers)
	r.Get("/callees", h.Callees)
	r.Get("/complexity", h.Complexity)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
