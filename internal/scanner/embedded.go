package scanner

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/codeintel/internal/parser"
)

// EmbeddedFields is the typed view of an entity's embedded configuration block.
// Missing or mistyped fields decode to empty lists.
type EmbeddedFields interface {
	References() []string
}

// AgentFields are the reference-bearing fields of an agent definition.
type AgentFields struct {
	Tasks        []string // dependencies.tasks
	Templates    []string // dependencies.templates
	Checklists   []string // dependencies.checklists
	Tools        []string // dependencies.tools
	Scripts      []string // dependencies.scripts
	CommandTasks []string // commands[].task
}

// References returns the agent references in declaration order.
func (a AgentFields) References() []string {
	var out []string
	for _, list := range [][]string{a.Tasks, a.Templates, a.Checklists, a.Tools, a.Scripts} {
		for _, item := range list {
			if cleaned := stripMD(strings.TrimSpace(inlineComment.ReplaceAllString(item, ""))); cleaned != "" {
				out = append(out, cleaned)
			}
		}
	}
	for _, task := range a.CommandTasks {
		out = append(out, stripMD(task))
	}
	return out
}

// WorkflowFields are the reference-bearing fields of a workflow definition.
type WorkflowFields struct {
	PhaseTasks     []string // phases[].task
	PhaseAgents    []string // phases[].agent
	SequenceAgents []string // sequence[].agent
	StepTasks      []string // steps[].task
	StepUses       []string // steps[].uses
}

// References returns the workflow references in declaration order.
func (w WorkflowFields) References() []string {
	var out []string
	for _, list := range [][]string{w.PhaseTasks, w.PhaseAgents, w.SequenceAgents, w.StepTasks, w.StepUses} {
		for _, item := range list {
			out = append(out, stripMD(item))
		}
	}
	return out
}

var inlineComment = regexp.MustCompile(`#.*$`)

// DecodeEmbedded parses the embedded block of a file and returns the typed
// fields for entityType. Markdown files carry the block in a ```yaml fence;
// other files are parsed whole. A nil result with nil error means the type has
// no embedded fields or the file has no block.
func DecodeEmbedded(entityType, filePath, content string) (EmbeddedFields, error) {
	if entityType != "agent" && entityType != "workflow" {
		return nil, nil
	}

	text := content
	if path.Ext(filePath) == ".md" {
		block, ok := parser.EmbeddedYAML(content)
		if !ok {
			return nil, nil
		}
		text = block
	}

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("scanner: embedded yaml: %w", err)
	}
	if doc == nil {
		return nil, nil
	}

	if entityType == "agent" {
		deps := mapField(doc, "dependencies")
		return AgentFields{
			Tasks:        stringList(deps["tasks"]),
			Templates:    stringList(deps["templates"]),
			Checklists:   stringList(deps["checklists"]),
			Tools:        stringList(deps["tools"]),
			Scripts:      stringList(deps["scripts"]),
			CommandTasks: objectField(arrayField(doc, "commands"), "task"),
		}, nil
	}

	return WorkflowFields{
		PhaseTasks:     objectField(arrayField(doc, "phases"), "task"),
		PhaseAgents:    objectField(arrayField(doc, "phases"), "agent"),
		SequenceAgents: objectField(arrayField(doc, "sequence"), "agent"),
		StepTasks:      objectField(arrayField(doc, "steps"), "task"),
		StepUses:       objectField(arrayField(doc, "steps"), "uses"),
	}, nil
}

func mapField(doc map[string]any, key string) map[string]any {
	m, _ := doc[key].(map[string]any)
	return m
}

// arrayField looks up key at the top level, then under a "workflow" wrapper.
func arrayField(doc map[string]any, key string) []any {
	if arr, ok := doc[key].([]any); ok {
		return arr
	}
	if arr, ok := mapField(doc, "workflow")[key].([]any); ok {
		return arr
	}
	return nil
}

func stringList(v any) []string {
	items, _ := v.([]any)
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func objectField(items []any, field string) []string {
	var out []string
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := obj[field].(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
