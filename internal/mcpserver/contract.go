package mcpserver

// ImportFormatContract describes the Markdown and JSON shapes accepted by
// the importer, for LLM consumers that author items or import files.
const ImportFormatContract = `# Tome Import Format Contract

Tome accepts three kinds of import files. A successful import REPLACES the
whole knowledge base, so export first if the current items matter.

## Markdown (.md, .markdown)

` + "```" + `markdown
---
title: Human-readable title        # REQUIRED – non-empty string
category: Development               # OPTIONAL – defaults to "Uncategorized"
tags: [go, concurrency]             # OPTIONAL – YAML list; blank entries dropped
summary: One-line synopsis          # OPTIONAL
createdAt: 2025-01-15T09:30:00Z     # OPTIONAL – any parseable date
updatedAt: 2025-01-16               # OPTIONAL – any parseable date
---

Body text in standard Markdown. Leading and trailing whitespace is trimmed.
` + "```" + `

## ZIP (.zip)

An archive of Markdown files in the format above. Every ` + "`" + `.md` + "`" + ` entry at any
depth is read; other entries are ignored. Entries that fail to parse are
skipped, but at least one must succeed.

## JSON (.json)

An array of objects. ` + "`" + `title` + "`" + ` and ` + "`" + `content` + "`" + ` must be strings; elements
without them are skipped. ` + "`" + `id` + "`" + `, ` + "`" + `category` + "`" + `, ` + "`" + `tags` + "`" + `, ` + "`" + `summary` + "`" + `,
` + "`" + `createdAt` + "`" + ` and ` + "`" + `updatedAt` + "`" + ` are optional. This is also the export format.

` + "```" + `json
[
  {
    "id": "0b7f7d9e-6c1a-4c1e-9d1e-2f3a4b5c6d7e",
    "title": "Go channels",
    "content": "Use select to multiplex.",
    "category": "Development",
    "tags": ["go"],
    "createdAt": "2025-01-15T09:30:00.000Z",
    "updatedAt": "2025-01-15T09:30:00.000Z"
  }
]
` + "```" + `

## Rules

1. Missing ids are generated; duplicate ids are replaced with fresh ones.
2. Timestamps are stored as UTC ISO-8601 with milliseconds.
3. Encoding is UTF-8. A leading byte-order mark is ignored.
`
