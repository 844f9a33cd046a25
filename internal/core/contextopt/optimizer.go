// Package contextopt compresses code context to a character budget before it
// is sent to the AI collaborator. Pure functions only.
package contextopt

import "strings"

// TruncationMarker is appended when content had to be cut at the budget.
const TruncationMarker = "\n... [truncated]"

// maxCommentLen is the cutoff for single-line comments during compression.
const maxCommentLen = 100

// Optimize compresses content to at most maxSize characters, plus the
// truncation marker when a cut was needed. Content already within budget is
// returned unchanged. Compression passes, in order: collapse runs of more
// than two blank lines, collapse block comments to a single marker line,
// truncate long single-line comments, then greedily keep whole lines until
// the budget is reached.
func Optimize(content string, maxSize int) string {
	if len(content) <= maxSize {
		return content
	}

	lines := compressLines(strings.Split(content, "\n"))

	var b strings.Builder
	for i, line := range lines {
		needed := len(line)
		if i > 0 {
			needed++ // joining newline
		}
		if b.Len()+needed > maxSize {
			b.WriteString(TruncationMarker)
			return b.String()
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}

// compressLines applies the lossy passes that do not depend on the budget.
func compressLines(lines []string) []string {
	out := make([]string, 0, len(lines))

	blankRun := 0
	inBlockComment := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if inBlockComment {
			if strings.Contains(trimmed, "*/") {
				inBlockComment = false
			}
			continue
		}

		if strings.HasPrefix(trimmed, "/*") {
			out = append(out, "/* ... */")
			if !strings.Contains(trimmed[2:], "*/") {
				inBlockComment = true
			}
			blankRun = 0
			continue
		}

		if trimmed == "" {
			blankRun++
			if blankRun > 2 {
				continue
			}
			out = append(out, line)
			continue
		}
		blankRun = 0

		if isLineComment(trimmed) && len(line) > maxCommentLen {
			out = append(out, line[:maxCommentLen])
			continue
		}

		out = append(out, line)
	}

	return out
}

func isLineComment(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#")
}
