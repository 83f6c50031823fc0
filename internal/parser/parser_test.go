package parser

import (
	"testing"
)

func TestParse_Frontmatter(t *testing.T) {
	input := []byte("---\nlifecycle: experimental\ntags:\n  - go\n---\n# Hello\nBody text.\n")
	r := Parse(input)
	if r.FrontmatterErr != nil {
		t.Fatalf("unexpected error: %v", r.FrontmatterErr)
	}
	if r.Frontmatter["lifecycle"] != "experimental" {
		t.Errorf("frontmatter = %v", r.Frontmatter)
	}
	if r.FrontmatterRaw != "lifecycle: experimental\ntags:\n  - go" {
		t.Errorf("raw = %q", r.FrontmatterRaw)
	}
	if r.Heading != "Hello" {
		t.Errorf("heading = %q, want Hello", r.Heading)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r := Parse([]byte("# Just a heading\nSome text.\n"))
	if r.Frontmatter != nil || r.FrontmatterErr != nil {
		t.Errorf("expected no frontmatter, got %v / %v", r.Frontmatter, r.FrontmatterErr)
	}
	if r.Heading != "Just a heading" {
		t.Errorf("heading = %q", r.Heading)
	}
}

func TestParse_InvalidYAMLReported(t *testing.T) {
	r := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
	if r.FrontmatterErr == nil {
		t.Error("expected FrontmatterErr on invalid YAML")
	}
}

func TestEmbeddedYAML(t *testing.T) {
	content := "# Agent\n\n```yaml\nagent:\n  name: Dex\n```\n\n```yaml\nsecond: true\n```\n"
	got, ok := EmbeddedYAML(content)
	if !ok {
		t.Fatal("expected embedded block")
	}
	if got != "agent:\n  name: Dex\n" {
		t.Errorf("embedded = %q", got)
	}
	if _, ok := EmbeddedYAML("no blocks here"); ok {
		t.Error("expected no embedded block")
	}
}

func TestFirstHeading_IgnoresSubheadings(t *testing.T) {
	if got := FirstHeading("## Sub\n# Main\n"); got != "Main" {
		t.Errorf("heading = %q, want Main", got)
	}
}

func TestPurposeSection(t *testing.T) {
	content := "# Title\n\n## Purpose\n\nThis is the purpose line.\n\nMore details.\n\n## Other"
	if got := PurposeSection(content); got != "This is the purpose line." {
		t.Errorf("purpose = %q", got)
	}
	if got := PurposeSection("## Purpose\n\n## Next\ntext"); got != "" {
		t.Errorf("empty section purpose = %q, want empty", got)
	}
	if got := PurposeSection("## purpose\nlower case heading"); got != "lower case heading" {
		t.Errorf("case-insensitive purpose = %q", got)
	}
}

func TestDescriptionField(t *testing.T) {
	if got := DescriptionField("name: x\ndescription: My awesome description here"); got != "My awesome description here" {
		t.Errorf("description = %q", got)
	}
	if got := DescriptionField("nothing"); got != "" {
		t.Errorf("description = %q, want empty", got)
	}
}

func TestLifecycleDeclaration(t *testing.T) {
	if got := LifecycleDeclaration("a: 1\nlifecycle: deprecated  \nb: 2"); got != "deprecated" {
		t.Errorf("lifecycle = %q", got)
	}
	if got := LifecycleDeclaration("  lifecycle: indented"); got != "" {
		t.Errorf("indented lifecycle should not match, got %q", got)
	}
}
