// Package parser splits entity source text into front matter, embedded YAML and
// the headings the scanner derives purpose and keywords from.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	headingRe     = regexp.MustCompile(`(?m)^#[ \t]+(.+)`)
	purposeHeadRe = regexp.MustCompile(`(?im)^##[ \t]*purpose[ \t]*$`)
	descriptionRe = regexp.MustCompile(`(?i)(?:description|purpose|summary):\s*(.+)`)
	embeddedRe    = regexp.MustCompile("(?s)```yaml\n(.*?)```")
	lifecycleRe   = regexp.MustCompile(`(?m)^lifecycle:[ \t]*(.+?)[ \t\r]*$`)
)

// Result holds the structural pieces of one source file.
type Result struct {
	// Frontmatter is nil when absent or malformed.
	Frontmatter map[string]any
	// FrontmatterErr is set when a front matter block exists but is not valid YAML.
	FrontmatterErr error
	// FrontmatterRaw is the text between the delimiters.
	FrontmatterRaw string
	// Embedded is the first fenced yaml block, if any.
	Embedded    string
	HasEmbedded bool
	Heading     string
}

// Parse never fails: malformed front matter is reported through FrontmatterErr
// and the raw block is kept.
func Parse(data []byte) *Result {
	raw, fm, err := splitFrontmatter(data)
	r := &Result{
		Frontmatter:    fm,
		FrontmatterErr: err,
		FrontmatterRaw: raw,
		Heading:        FirstHeading(string(data)),
	}
	r.Embedded, r.HasEmbedded = EmbeddedYAML(string(data))
	return r
}

// splitFrontmatter decodes a leading --- delimited YAML block.
func splitFrontmatter(data []byte) (string, map[string]any, error) {
	const delim = "---"
	if !bytes.HasPrefix(data, []byte(delim+"\n")) {
		return "", nil, nil
	}

	rest := data[len(delim)+1:]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return "", nil, nil
	}

	block := rest[:idx]
	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return string(block), nil, fmt.Errorf("parser: front matter: %w", err)
	}
	return string(block), fm, nil
}

// EmbeddedYAML returns the content of the first ```yaml fenced block.
func EmbeddedYAML(content string) (string, bool) {
	m := embeddedRe.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FirstHeading returns the text of the first level-one heading.
func FirstHeading(content string) string {
	m := headingRe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// PurposeSection returns the first non-blank line under a "## Purpose" heading.
// The section ends at the next "##" heading or "---" rule.
func PurposeSection(content string) string {
	loc := purposeHeadRe.FindStringIndex(content)
	if loc == nil {
		return ""
	}
	for _, line := range strings.Split(content[loc[1]:], "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "##") || strings.HasPrefix(trimmed, "---") {
			return ""
		}
		return trimmed
	}
	return ""
}

// DescriptionField returns the value of the first description:, purpose: or summary: field.
func DescriptionField(content string) string {
	m := descriptionRe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// LifecycleDeclaration finds a "lifecycle: <state>" line in text.
func LifecycleDeclaration(text string) string {
	m := lifecycleRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
