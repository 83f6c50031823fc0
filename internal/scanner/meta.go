package scanner

import (
	"regexp"
	"strings"

	"github.com/starford/codeintel/internal/parser"
)

const maxPurpose = 200

var (
	nameSplitRe = regexp.MustCompile(`[-_.]`)
	stopWords   = map[string]struct{}{
		"the": {}, "and": {}, "for": {}, "with": {}, "this": {}, "that": {}, "from": {},
	}
)

// Keywords derives lowercase tokens from the file stem and the first heading.
func Keywords(filePath, heading string) []string {
	var parts []string
	for _, p := range nameSplitRe.Split(stem(filePath), -1) {
		if len(p) > 1 {
			parts = append(parts, p)
		}
	}

	var words []string
	for _, w := range strings.Fields(strings.ToLower(heading)) {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		words = append(words, w)
		if len(words) == 5 {
			break
		}
	}
	parts = append(parts, words...)

	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(p)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Purpose picks the first of: Purpose section, description-like field,
// first heading, "Entity at <path>". The result is capped at 200 characters.
func Purpose(content, relPath string) string {
	for _, candidate := range []string{
		parser.PurposeSection(content),
		parser.DescriptionField(content),
		parser.FirstHeading(content),
	} {
		if candidate != "" {
			return truncate(candidate, maxPurpose)
		}
	}
	return truncate("Entity at "+relPath, maxPurpose)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// LifecycleOverride returns an explicit lifecycle declaration and where it was
// found: front matter, then the embedded block, then an inline line. A front
// matter block that is not valid YAML is still searched line by line.
func LifecycleOverride(res *parser.Result, content string) (value, source string) {
	if res.Frontmatter != nil {
		if v, ok := res.Frontmatter["lifecycle"].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), "frontmatter"
		}
	} else if res.FrontmatterErr != nil {
		if v := parser.LifecycleDeclaration(res.FrontmatterRaw); v != "" {
			return v, "frontmatter"
		}
	}
	if res.HasEmbedded {
		if v := parser.LifecycleDeclaration(res.Embedded); v != "" {
			return v, "embedded"
		}
	}
	if v := parser.LifecycleDeclaration(content); v != "" {
		return v, "inline"
	}
	return "", ""
}
