package mcpserver

// RegistryFormat describes the persisted registry document so LLM consumers
// can read it directly.
const RegistryFormat = `# Entity Registry Format

The registry is a single YAML document, by default at
` + "`" + `.aios-core/data/entity-registry.yaml` + "`" + `, rewritten in full by ` + "`" + `codeintel build` + "`" + `.

## Structure

` + "```" + `yaml
metadata:
  version: 1.0.0
  lastUpdated: 2026-01-02T03:04:05.123Z   # UTC, RFC 3339
  entityCount: 512
  checksumAlgorithm: sha256
  resolutionRate: 87                      # internal / (internal + planned), percent
entities:
  tasks:                                  # category
    create-story:                         # entity id = file name without extension
      path: .aios-core/development/tasks/create-story.md
      layer: L2                           # L1 core, L2 templates, L3 config, L4 runtime
      type: task
      purpose: Draft the next story.
      keywords: [create, story]
      usedBy: [sm]                        # ids of entities depending on this one
      dependencies: [story-tmpl]          # references that resolved to an entity
      externalDeps: [git]                 # references to known external tools
      plannedDeps: [story-dod]            # references to nothing that exists yet
      lifecycle: production               # production | experimental | deprecated | orphan
      adaptability:
        score: 0.8
        constraints: []
        extensionPoints: []
      checksum: sha256:<hex>
      lastVerified: 2026-01-02T03:04:05Z
      invocationExamples: ["*create-story"] # optional, preserved across rebuilds
categories:
  - id: tasks
    description: Executable task workflows for agent operations
    basePath: .aios-core/development/tasks
` + "```" + `

## Rules

1. Every category listed under ` + "`" + `categories` + "`" + ` appears under ` + "`" + `entities` + "`" + `, possibly empty.
2. ` + "`" + `dependencies` + "`" + `, ` + "`" + `externalDeps` + "`" + ` and ` + "`" + `plannedDeps` + "`" + ` partition the references found in the file.
3. ` + "`" + `usedBy` + "`" + ` is the exact inverse of ` + "`" + `dependencies` + "`" + ` across the document.
4. An id is unique within a category; the same id may exist in several categories.
5. Paths are repository-relative with forward slashes.
`
