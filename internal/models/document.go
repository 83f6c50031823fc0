package models

import "sort"

// Metadata summarises a registry build.
type Metadata struct {
	Version           string `yaml:"version" json:"version"`
	LastUpdated       string `yaml:"lastUpdated" json:"lastUpdated"`
	EntityCount       int    `yaml:"entityCount" json:"entityCount"`
	ChecksumAlgorithm string `yaml:"checksumAlgorithm" json:"checksumAlgorithm"`
	ResolutionRate    int    `yaml:"resolutionRate" json:"resolutionRate"`
}

// Category describes one configured directory group.
type Category struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description" json:"description"`
	BasePath    string `yaml:"basePath" json:"basePath"`
}

// EntitySet maps category -> entity id -> entity.
type EntitySet map[string]map[string]*Entity

// Document is the persisted registry.
type Document struct {
	Metadata   Metadata   `yaml:"metadata" json:"metadata"`
	Entities   EntitySet  `yaml:"entities" json:"entities"`
	Categories []Category `yaml:"categories" json:"categories"`
}

// Ref points at one entity of an EntitySet.
type Ref struct {
	Category string
	ID       string
}

// Key returns the composite "category:id" key.
func (r Ref) Key() string {
	return r.Category + ":" + r.ID
}

// Get returns the entity behind ref, or nil.
func (s EntitySet) Get(ref Ref) *Entity {
	if s[ref.Category] == nil {
		return nil
	}
	return s[ref.Category][ref.ID]
}

// Count returns the number of entities across all categories.
func (s EntitySet) Count() int {
	n := 0
	for _, entities := range s {
		n += len(entities)
	}
	return n
}

// Walk visits every entity in category order, then id order, so that
// passes over the set are reproducible.
func (s EntitySet) Walk(order []string, fn func(ref Ref, e *Entity)) {
	seen := make(map[string]struct{}, len(s))
	visit := func(category string) {
		entities := s[category]
		ids := make([]string, 0, len(entities))
		for id := range entities {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fn(Ref{Category: category, ID: id}, entities[id])
		}
	}
	for _, category := range order {
		if _, ok := s[category]; !ok {
			continue
		}
		if _, dup := seen[category]; dup {
			continue
		}
		seen[category] = struct{}{}
		visit(category)
	}
	rest := make([]string, 0)
	for category := range s {
		if _, ok := seen[category]; !ok {
			rest = append(rest, category)
		}
	}
	sort.Strings(rest)
	for _, category := range rest {
		visit(category)
	}
}
