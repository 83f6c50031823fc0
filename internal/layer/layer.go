// Package layer maps repository-relative paths to ownership layers.
//
// Rules are evaluated in order and the first match wins. Project config rules
// precede the framework template rules so that files such as agents/MEMORY.md,
// which live inside template directories, still classify as L3.
package layer

import (
	"strings"

	"github.com/starford/codeintel/internal/models"
)

// Rule is one entry of the ordered rule list.
type Rule struct {
	Layer models.Layer
	Match func(path string) bool
}

// Default is returned when no rule matches.
const Default = models.LayerRuntime

func prefix(p string) func(string) bool {
	return func(path string) bool { return strings.HasPrefix(path, p) }
}

func equals(values ...string) func(string) bool {
	return func(path string) bool {
		for _, v := range values {
			if path == v {
				return true
			}
		}
		return false
	}
}

// Rules is the ordered rule list.
var Rules = []Rule{
	{models.LayerCore, prefix(".aios-core/core/")},
	{models.LayerCore, prefix("bin/")},
	{models.LayerCore, equals(".aios-core/constitution.md")},

	{models.LayerConfig, prefix(".aios-core/data/")},
	{models.LayerConfig, func(p string) bool { return p == "MEMORY.md" || strings.HasSuffix(p, "/MEMORY.md") }},
	{models.LayerConfig, prefix(".claude/")},
	{models.LayerConfig, equals("core-config.yaml", "project-config.yaml")},
	{models.LayerConfig, func(p string) bool { return strings.HasSuffix(p, "-config.yaml") && !strings.Contains(p, "/") }},

	{models.LayerTemplates, prefix(".aios-core/development/")},
	{models.LayerTemplates, prefix(".aios-core/infrastructure/")},
	{models.LayerTemplates, prefix(".aios-core/product/")},
}

// Normalize converts backslashes to forward slashes and strips a leading "./" or "/".
func Normalize(path string) string {
	p := strings.ReplaceAll(path, `\`, "/")
	p = strings.TrimPrefix(p, "./")
	return strings.TrimPrefix(p, "/")
}

// Classify returns the layer of the first matching rule, or Default.
func Classify(path string) models.Layer {
	p := Normalize(path)
	for _, r := range Rules {
		if r.Match(p) {
			return r.Layer
		}
	}
	return Default
}
