package scanner

import (
	"path"
	"regexp"
	"strings"
)

// Generic relative module references.
var (
	requireRe = regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	importRe  = regexp.MustCompile(`(?:from|import)\s+['"]([^'"]+)['"]`)
)

// Structured "dependencies:" block followed by indented bullets.
var (
	depBlockRe  = regexp.MustCompile(`dependencies:[ \t]*\r?\n((?:[ \t]+-[ \t]+[^\n]+\n?)*)`)
	depBulletRe = regexp.MustCompile(`-[ \t]+([^\n]+)`)
)

// Inline document cross-reference patterns.
var (
	bulletFileRe = regexp.MustCompile(`(?m)^[ \t]*[-*][ \t]+([\w.-]+\.(?:md|yaml|js))[ \t]*\r?$`)
	labelListRe  = regexp.MustCompile(`(?m)^[ \t]*[-*][ \t]+\*\*[\w \t]+:\*\*[ \t]+(.+)$`)
	labelSplitRe = regexp.MustCompile(`[,;]\s*`)
	fileNameRe   = regexp.MustCompile(`([\w.-]+\.(?:md|yaml|js))`)
	mdLinkRe     = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+\.(?:md|yaml|js))\)`)
	agentRefRe   = regexp.MustCompile(`@(` + strings.Join(KnownAgents, "|") + `)\b`)
)

func stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

func stripMD(s string) string {
	return strings.TrimSuffix(s, ".md")
}

// GenericReferences returns the base names of relative require/import targets.
// Package imports (targets not starting with "." or "/") are ignored.
func GenericReferences(content string) []string {
	var out []string
	for _, re := range []*regexp.Regexp{requireRe, importRe} {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			target := m[1]
			if strings.HasPrefix(target, ".") || strings.HasPrefix(target, "/") {
				out = append(out, stem(target))
			}
		}
	}
	return out
}

// DependencyBlock returns the bullets of the first "dependencies:" list, with a
// trailing .md stripped.
func DependencyBlock(content string) []string {
	m := depBlockRe.FindStringSubmatch(content)
	if m == nil {
		return nil
	}
	var out []string
	for _, item := range depBulletRe.FindAllStringSubmatch(m[1], -1) {
		out = append(out, stripMD(strings.TrimSpace(item[1])))
	}
	return out
}

// CrossReferences applies the four inline patterns used by document-style
// categories: bare filename bullets, labelled lists, markdown links and @agent
// mentions. Unknown @tokens are not references.
func CrossReferences(content string) []string {
	var out []string

	for _, m := range bulletFileRe.FindAllStringSubmatch(content, -1) {
		out = append(out, stripMD(m[1]))
	}

	for _, m := range labelListRe.FindAllStringSubmatch(content, -1) {
		for _, item := range labelSplitRe.Split(m[1], -1) {
			if f := fileNameRe.FindStringSubmatch(strings.TrimSpace(item)); f != nil {
				out = append(out, stripMD(f[1]))
			}
		}
	}

	for _, m := range mdLinkRe.FindAllStringSubmatch(content, -1) {
		out = append(out, stem(m[2]))
	}

	for _, m := range agentRefRe.FindAllStringSubmatch(content, -1) {
		out = append(out, m[1])
	}

	return out
}
