package scanner

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Group is one configured directory group.
type Group struct {
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
	BasePath    string `yaml:"base_path"`
	Pattern     string `yaml:"pattern"`
	Type        string `yaml:"type"`
	// Embedded enables extraction from the embedded YAML configuration block.
	Embedded bool `yaml:"embedded"`
	// CrossRefs enables the inline document cross-reference patterns.
	CrossRefs bool `yaml:"cross_refs"`
}

// Validate validates the group configuration.
func (g Group) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Category, validation.Required),
		validation.Field(&g.BasePath, validation.Required),
		validation.Field(&g.Type, validation.Required),
		validation.Field(&g.Pattern, validation.Required, validation.By(func(any) error {
			if !doublestar.ValidatePattern(g.Pattern) {
				return fmt.Errorf("invalid glob pattern %q", g.Pattern)
			}
			return nil
		})),
	)
}

// DefaultGroups reproduces the standard framework layout.
func DefaultGroups() []Group {
	return []Group{
		{Category: "tasks", BasePath: ".aios-core/development/tasks", Pattern: "**/*.md", Type: "task", CrossRefs: true,
			Description: "Executable task workflows for agent operations"},
		{Category: "templates", BasePath: ".aios-core/product/templates", Pattern: "**/*.{yaml,yml,md}", Type: "template", CrossRefs: true,
			Description: "Document and code generation templates"},
		{Category: "scripts", BasePath: ".aios-core/development/scripts", Pattern: "**/*.{js,mjs}", Type: "script",
			Description: "Utility and automation scripts"},
		{Category: "modules", BasePath: ".aios-core/core", Pattern: "**/*.{js,mjs}", Type: "module",
			Description: "Core framework modules and libraries"},
		{Category: "agents", BasePath: ".aios-core/development/agents", Pattern: "**/*.{md,yaml,yml}", Type: "agent", Embedded: true,
			Description: "Agent persona definitions and configurations"},
		{Category: "checklists", BasePath: ".aios-core/development/checklists", Pattern: "**/*.md", Type: "checklist", CrossRefs: true,
			Description: "Validation and review checklists"},
		{Category: "data", BasePath: ".aios-core/data", Pattern: "**/*.{yaml,yml,md}", Type: "data",
			Description: "Configuration and reference data files"},
		{Category: "workflows", BasePath: ".aios-core/development/workflows", Pattern: "**/*.{yaml,yml}", Type: "workflow", Embedded: true,
			Description: "Multi-phase orchestration workflows"},
		{Category: "utils", BasePath: ".aios-core/core/utils", Pattern: "**/*.js", Type: "util",
			Description: "Shared utility libraries and helpers"},
		{Category: "tools", BasePath: ".aios-core/development/tools", Pattern: "**/*.{md,js,sh}", Type: "tool",
			Description: "Development tool definitions and configurations"},
		{Category: "infra-scripts", BasePath: ".aios-core/infrastructure/scripts", Pattern: "**/*.js", Type: "script",
			Description: "Infrastructure automation and utility scripts"},
		{Category: "infra-tools", BasePath: ".aios-core/infrastructure/tools", Pattern: "**/*.{yaml,yml,md}", Type: "tool",
			Description: "Infrastructure tool definitions and configurations"},
		{Category: "product-checklists", BasePath: ".aios-core/product/checklists", Pattern: "**/*.md", Type: "checklist", CrossRefs: true,
			Description: "Product validation and review checklists"},
		{Category: "product-data", BasePath: ".aios-core/product/data", Pattern: "**/*.{yaml,yml,md}", Type: "data",
			Description: "Product reference data and configuration files"},
	}
}

var adaptabilityDefaults = map[string]float64{
	"agent":     0.3,
	"module":    0.4,
	"template":  0.5,
	"checklist": 0.6,
	"data":      0.5,
	"script":    0.7,
	"task":      0.8,
	"workflow":  0.4,
	"util":      0.6,
	"tool":      0.7,
}

// AdaptabilityScore returns the default adaptability score for an entity type.
func AdaptabilityScore(entityType string) float64 {
	if s, ok := adaptabilityDefaults[entityType]; ok {
		return s
	}
	return 0.5
}
