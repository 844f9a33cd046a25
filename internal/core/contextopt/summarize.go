package contextopt

import (
	"fmt"
	"strings"
)

// maxOutlineEntries caps the structural outline so a declaration-heavy file
// cannot blow the summary up past the content it replaces.
const maxOutlineEntries = 50

// declarationPrefixes mark lines worth surfacing in a structural outline.
// Deliberately language-loose: the indexer feeds files from whatever
// ecosystem the repository uses.
var declarationPrefixes = []string{
	"func ", "type ", "interface ", "struct ",
	"class ", "def ", "fn ", "impl ", "enum ",
	"public ", "private ", "protected ",
}

// Summarize returns a compact stand-in for an oversized file: a structural
// outline of its declarations plus the first and last maxLines lines.
// Content with at most 2*maxLines lines is returned unchanged.
func Summarize(filePath, content string, maxLines int) string {
	lines := strings.Split(content, "\n")
	if maxLines <= 0 || len(lines) <= 2*maxLines {
		return content
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s (%d lines, showing first/last %d) ===\n", filePath, len(lines), maxLines)

	if outline := Outline(content); len(outline) > 0 {
		b.WriteString("--- outline ---\n")
		for _, entry := range outline {
			b.WriteString("  ")
			b.WriteString(entry)
			b.WriteByte('\n')
		}
	}

	b.WriteString("--- head ---\n")
	for _, line := range lines[:maxLines] {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "... [%d lines omitted] ...\n", len(lines)-2*maxLines)

	b.WriteString("--- tail ---\n")
	for i, line := range lines[len(lines)-maxLines:] {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}

	return b.String()
}

// Outline extracts declaration lines (types, functions, members) from file
// content, trimmed, capped at maxOutlineEntries.
func Outline(content string) []string {
	var entries []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range declarationPrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				entries = append(entries, strings.TrimRight(trimmed, " {"))
				break
			}
		}
		if len(entries) >= maxOutlineEntries {
			break
		}
	}
	return entries
}
