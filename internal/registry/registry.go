// Package registry assembles, encodes and persists the registry document.
package registry

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/codeintel/internal/checksum"
	"github.com/starford/codeintel/internal/models"
	"github.com/starford/codeintel/internal/storage"
)

// Version is the document format version written into metadata.
const Version = "1.0.0"

// DefaultPath is the repository-relative location of the registry document.
const DefaultPath = ".aios-core/data/entity-registry.yaml"

// Limits for the curated invocation examples carried across rebuilds.
const (
	MaxExamples      = 3
	MaxExampleLength = 200
)

// Assemble builds the document from a classified entity set.
func Assemble(set models.EntitySet, categories []models.Category, resolutionRate int, now time.Time) *models.Document {
	if set == nil {
		set = models.EntitySet{}
	}
	// Configured categories that yielded nothing are still listed.
	for _, c := range categories {
		if set[c.ID] == nil {
			set[c.ID] = map[string]*models.Entity{}
		}
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return &models.Document{
		Metadata: models.Metadata{
			Version:           Version,
			LastUpdated:       now.UTC().Format(time.RFC3339Nano),
			EntityCount:       set.Count(),
			ChecksumAlgorithm: checksum.Algorithm,
			ResolutionRate:    resolutionRate,
		},
		Entities:   set,
		Categories: categories,
	}
}

// Encode renders doc as YAML.
func Encode(doc *models.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("registry: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("registry: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a registry document.
func Decode(data []byte) (*models.Document, error) {
	var doc models.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: decode: %w", err)
	}
	if doc.Entities == nil {
		doc.Entities = models.EntitySet{}
	}
	return &doc, nil
}

// Save encodes doc and writes it atomically to abs. Any failure is returned.
func Save(abs string, doc *models.Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(abs, data); err != nil {
		return fmt.Errorf("registry: write %s: %w", abs, err)
	}
	return nil
}

// Load reads and decodes the document at abs.
func Load(abs string) (*models.Document, error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", abs, err)
	}
	return Decode(data)
}

// priorDoc is the tolerant view of a previous document used to recover the
// curated examples. Items of any scalar or structured type are accepted.
type priorDoc struct {
	Entities map[string]map[string]struct {
		InvocationExamples []any `yaml:"invocationExamples"`
	} `yaml:"entities"`
}

// CarryExamples copies invocationExamples from the previous document bytes
// onto matching entities of set, keeping at most MaxExamples entries of at
// most MaxExampleLength characters each. It returns the number of entities
// that received examples. Unparseable previous content carries nothing.
func CarryExamples(previous []byte, set models.EntitySet) (int, error) {
	if len(previous) == 0 {
		return 0, nil
	}
	var prior priorDoc
	if err := yaml.Unmarshal(previous, &prior); err != nil {
		return 0, fmt.Errorf("registry: previous document: %w", err)
	}

	carried := 0
	for category, entities := range prior.Entities {
		current := set[category]
		if current == nil {
			continue
		}
		for id, old := range entities {
			e := current[id]
			if e == nil || old.InvocationExamples == nil {
				continue
			}
			examples := old.InvocationExamples
			if len(examples) > MaxExamples {
				examples = examples[:MaxExamples]
			}
			out := make([]string, 0, len(examples))
			for _, ex := range examples {
				out = append(out, truncate(fmt.Sprint(ex), MaxExampleLength))
			}
			e.InvocationExamples = out
			carried++
		}
	}
	return carried, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
