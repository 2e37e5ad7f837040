package mcpserver

// NoteFormatContract describes the Markdown note format that LLM consumers
// should follow when creating notes.
const NoteFormatContract = `# Ansuz Note Format Contract

Each note is stored as ` + "`" + `<id>.md` + "`" + ` in a single flat directory.

## Structure

` + "```" + `markdown
---
title: Human-readable title   # REQUIRED - shown in the tree and breadcrumbs
pid: 01j2k3m4n5p6q7r8s9t0v1w2 # OPTIONAL - id of the parent note
shared: public                # OPTIONAL - omit for private notes
updated: 2025-01-15T09:30:00Z # WRITTEN BY THE SERVICE - do not set by hand
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **Ids** start with a letter or digit and contain only letters, digits, ` + "`" + `-` + "`" + ` and ` + "`" + `_` + "`" + `,
   up to 128 characters. The id ` + "`" + `new` + "`" + ` is reserved.
   Use the ` + "`" + `create_note` + "`" + ` tool to get a generated id.
2. **Daily notes** use the id ` + "`" + `YYYY-M-D` + "`" + ` without zero padding (for example ` + "`" + `2024-3-5` + "`" + `)
   and live under the configured daily root note. Use ` + "`" + `open_daily_note` + "`" + ` to reach them.
3. **Hierarchy** is expressed only through ` + "`" + `pid` + "`" + `. A note whose parent is unknown is
   shown at the top level. Parent chains must not loop.
4. **Empty bodies** are stored as a single newline.
5. **Encoding** is UTF-8. Frontmatter keys are English; values and body may use any language.

## Example

` + "```" + `markdown
---
title: Weekly standup
pid: 01j2k3m4n5p6q7r8s9t0v1w2
---

# Weekly standup

Attendees: Alice, Bob.
` + "```" + `
`
