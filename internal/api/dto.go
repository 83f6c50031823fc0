package api

import (
	"github.com/starford/codeintel/internal/index"
	"github.com/starford/codeintel/internal/query"
)

// ReferencesResponse wraps the entities referring to a symbol.
type ReferencesResponse struct {
	References []query.Reference `json:"references" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// AvailableResponse reports engine and mirror availability.
type AvailableResponse struct {
	Available bool `json:"available" example:"true"`
	Search    bool `json:"search" example:"false"`
}
