// Package models defines the registry document types shared by the build and query sides.
package models

// Layer is one of the four ownership tiers.
type Layer string

const (
	LayerCore      Layer = "L1" // framework core
	LayerTemplates Layer = "L2" // framework templates
	LayerConfig    Layer = "L3" // project configuration
	LayerRuntime   Layer = "L4" // project runtime
)

// Layers lists every layer, highest priority first.
var Layers = []Layer{LayerCore, LayerTemplates, LayerConfig, LayerRuntime}

// Priority returns 0 for L1 through 3 for L4, and 99 for anything else.
func (l Layer) Priority() int {
	for i, known := range Layers {
		if l == known {
			return i
		}
	}
	return 99
}

// Lifecycle states assigned after classification.
const (
	LifecycleProduction   = "production"
	LifecycleExperimental = "experimental"
	LifecycleOrphan       = "orphan"
	LifecycleDeprecated   = "deprecated"
)

// Adaptability describes how freely an entity may be changed by project code.
type Adaptability struct {
	Score           float64  `yaml:"score" json:"score"`
	Constraints     []string `yaml:"constraints" json:"constraints"`
	ExtensionPoints []string `yaml:"extensionPoints" json:"extensionPoints"`
}

// Entity is one indexed file.
type Entity struct {
	Path               string       `yaml:"path" json:"path"`
	Layer              Layer        `yaml:"layer" json:"layer"`
	Type               string       `yaml:"type" json:"type"`
	Purpose            string       `yaml:"purpose" json:"purpose"`
	Keywords           []string     `yaml:"keywords" json:"keywords"`
	UsedBy             []string     `yaml:"usedBy" json:"usedBy"`
	Dependencies       []string     `yaml:"dependencies" json:"dependencies"`
	ExternalDeps       []string     `yaml:"externalDeps" json:"externalDeps"`
	PlannedDeps        []string     `yaml:"plannedDeps" json:"plannedDeps"`
	Lifecycle          string       `yaml:"lifecycle" json:"lifecycle"`
	Adaptability       Adaptability `yaml:"adaptability" json:"adaptability"`
	Checksum           string       `yaml:"checksum" json:"checksum"`
	LastVerified       string       `yaml:"lastVerified" json:"lastVerified"`
	InvocationExamples []string     `yaml:"invocationExamples,omitempty" json:"invocationExamples,omitempty"`

	// LifecycleOverride is the explicit declaration found while scanning.
	// It is consumed by lifecycle assignment and never persisted.
	LifecycleOverride string `yaml:"-" json:"-"`
	// Resolved holds the target of each internal dependency, index for index.
	// Bare ids are ambiguous across categories, so reverse edges use these.
	Resolved []Ref `yaml:"-" json:"-"`
}

// ReferenceCount returns the size of the three dependency partitions combined.
func (e *Entity) ReferenceCount() int {
	return len(e.Dependencies) + len(e.ExternalDeps) + len(e.PlannedDeps)
}
