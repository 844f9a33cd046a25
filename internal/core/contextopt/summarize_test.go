package contextopt

import (
	"fmt"
	"strings"
	"testing"
)

func buildFile(lineCount int) string {
	var b strings.Builder
	b.WriteString("package sample\n")
	b.WriteString("type Widget struct {\n")
	b.WriteString("func (w *Widget) Spin() error {\n")
	for i := 0; i < lineCount-3; i++ {
		fmt.Fprintf(&b, "\tline%d := %d\n", i, i)
	}
	return b.String()
}

func TestSummarizeSmallFileUnchanged(t *testing.T) {
	content := buildFile(10)
	if got := Summarize("w.go", content, 20); got != content {
		t.Errorf("Summarize() changed a file within the line budget")
	}
}

func TestSummarizeOversizedFile(t *testing.T) {
	content := buildFile(300)
	got := Summarize("internal/widget/w.go", content, 20)

	if len(strings.Split(got, "\n")) >= len(strings.Split(content, "\n")) {
		t.Error("Summarize() did not shrink the file")
	}
	if !strings.Contains(got, "internal/widget/w.go") {
		t.Error("summary missing file path header")
	}
	if !strings.Contains(got, "type Widget struct") {
		t.Error("summary outline missing type declaration")
	}
	if !strings.Contains(got, "func (w *Widget) Spin() error") {
		t.Error("summary outline missing function declaration")
	}
	if !strings.Contains(got, "line0 := 0") {
		t.Error("summary missing head lines")
	}
	if !strings.Contains(got, "lines omitted") {
		t.Error("summary missing omission marker")
	}
	// Last generated line must appear in the tail section.
	if !strings.Contains(got, "line296 := 296") {
		t.Error("summary missing tail lines")
	}
}

func TestSummarizeZeroMaxLines(t *testing.T) {
	content := buildFile(50)
	if got := Summarize("w.go", content, 0); got != content {
		t.Error("Summarize() with maxLines=0 should return content unchanged")
	}
}

func TestOutline(t *testing.T) {
	content := "package x\n\ntype A struct {\n\tB int\n}\n\nfunc Run() {\n}\n\nclass Legacy:\n"
	outline := Outline(content)

	want := []string{"type A struct", "func Run()", "class Legacy:"}
	if len(outline) != len(want) {
		t.Fatalf("Outline() = %v, want %v", outline, want)
	}
	for i := range want {
		if outline[i] != want[i] {
			t.Errorf("Outline()[%d] = %q, want %q", i, outline[i], want[i])
		}
	}
}

func TestOutlineCapped(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "func f%d() {}\n", i)
	}
	if got := Outline(b.String()); len(got) > maxOutlineEntries {
		t.Errorf("Outline() returned %d entries, want <= %d", len(got), maxOutlineEntries)
	}
}
