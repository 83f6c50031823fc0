// Package doctor runs the registry health checks behind `codeintel doctor`.
package doctor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/starford/codeintel/internal/query"
	"github.com/starford/codeintel/internal/registry"
)

// Check statuses.
const (
	StatusPass = "PASS"
	StatusWarn = "WARN"
	StatusFail = "FAIL"
	StatusInfo = "INFO"
)

// MaxRegistryAge is the age after which the registry is reported stale.
const MaxRegistryAge = 48 * time.Hour

const fixBuild = "codeintel build"

// Check is the outcome of one diagnostic.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Fix     string `json:"fix,omitempty"`
}

// Report aggregates checks. Healthy is false when any check failed.
type Report struct {
	Healthy bool    `json:"healthy"`
	Checks  []Check `json:"checks"`
}

// NewReport builds a report from checks.
func NewReport(checks ...Check) Report {
	r := Report{Healthy: true, Checks: checks}
	for _, c := range checks {
		if c.Status == StatusFail {
			r.Healthy = false
		}
	}
	return r
}

// RegistryFreshness fails when the registry file is missing and warns when it
// was last written more than MaxRegistryAge before now.
func RegistryFreshness(path string, now time.Time) Check {
	c := Check{Name: "entity-registry"}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.Status, c.Message, c.Fix = StatusFail, "registry not found at "+path, fixBuild
		return c
	}
	if err != nil {
		c.Status, c.Message = StatusFail, "stat registry: "+err.Error()
		return c
	}

	age := now.Sub(info.ModTime())
	hours := int(age.Round(time.Hour) / time.Hour)

	summary := "unreadable metadata"
	if doc, err := registry.Load(path); err == nil {
		summary = fmt.Sprintf("%d entities, lastUpdated %s", doc.Metadata.EntityCount, doc.Metadata.LastUpdated)
	}

	if age > MaxRegistryAge {
		c.Status = StatusWarn
		c.Message = fmt.Sprintf("registry is %dh old (threshold: %dh), %s", hours, int(MaxRegistryAge/time.Hour), summary)
		c.Fix = fixBuild
		return c
	}
	c.Status = StatusPass
	c.Message = fmt.Sprintf("updated %dh ago, %s", hours, summary)
	return c
}

// CodeIntel reports whether the query engine can serve the registry.
func CodeIntel(engine *query.Engine) Check {
	c := Check{Name: "code-intel"}
	exists, err := engine.Status()
	switch {
	case err == nil:
		doc, _ := engine.Document()
		count := 0
		if doc != nil {
			count = doc.Metadata.EntityCount
		}
		c.Status = StatusPass
		c.Message = fmt.Sprintf("registry query engine active, %d entities, 5/8 primitives", count)
	case exists:
		c.Status = StatusWarn
		c.Message = "registry exists but could not be loaded (empty or malformed): " + err.Error()
		c.Fix = fixBuild
	default:
		c.Status = StatusInfo
		c.Message = "no registry available, queries will report unavailable"
		c.Fix = fixBuild
	}
	return c
}

// Run executes every check against the registry at path.
func Run(path string, now time.Time, engine *query.Engine) Report {
	return NewReport(RegistryFreshness(path, now), CodeIntel(engine))
}
