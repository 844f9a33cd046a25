// Package indexer implements the CodeIndexer port with keyword matching over
// the repository's tracked files. It is deliberately lightweight: no AST, no
// embeddings, just ticket keywords scored against file names and content
// hits.
package indexer

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/example/conveyor/internal/core/analysis"
	"github.com/example/conveyor/internal/core/contextopt"
	"github.com/example/conveyor/internal/ports/secondary"
)

const (
	// maxSearchKeywords bounds the number of content searches per ticket.
	maxSearchKeywords = 8

	// maxContextFiles caps how many files make it into the context.
	maxContextFiles = 12

	// summarizeOverLines is the per-file size threshold; larger files are
	// replaced by an outline plus head/tail excerpt.
	summarizeOverLines = 120

	// maxRelevantSymbols caps the symbol list in the produced context.
	maxRelevantSymbols = 40
)

// Indexer builds semantic context from a workspace through the
// VersionControl port. It claims the version control client for the duration
// of a build; callers must not hold their own claim across the call.
type Indexer struct {
	vcs         secondary.VersionControl
	parallelism int
}

// NewIndexer creates an Indexer reading through vcs.
func NewIndexer(vcs secondary.VersionControl) *Indexer {
	return &Indexer{
		vcs:         vcs,
		parallelism: runtime.NumCPU(),
	}
}

var _ secondary.CodeIndexer = (*Indexer)(nil)

// BuildSemanticContext assembles the code context for a ticket from the
// workspace at path.
func (i *Indexer) BuildSemanticContext(ctx context.Context, ticket *secondary.Ticket, workspacePath string) (*secondary.SemanticContext, error) {
	restore := i.vcs.SwitchRepository(workspacePath)
	defer restore()

	keywords := analysis.Keywords(ticket.Title + " " + ticket.Description)

	files, err := i.vcs.ListFiles(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace files: %w", err)
	}
	if len(files) == 0 {
		return &secondary.SemanticContext{StructuredText: "(empty repository)"}, nil
	}

	selected := i.rankFiles(ctx, keywords, files)
	if len(selected) == 0 {
		// Nothing matched; fall back to the first tracked files so the AI
		// still sees the repository's shape.
		for _, path := range files {
			selected = append(selected, path)
			if len(selected) == maxContextFiles {
				break
			}
		}
	}

	contents, err := i.readAll(ctx, selected)
	if err != nil {
		return nil, err
	}

	return assembleContext(selected, contents), nil
}

// rankFiles scores every tracked file by keyword overlap with its path plus
// content search hits, and returns the best paths, capped.
func (i *Indexer) rankFiles(ctx context.Context, keywords, files []string) []string {
	hits := map[string]int{}
	searches := keywords
	if len(searches) > maxSearchKeywords {
		searches = searches[:maxSearchKeywords]
	}
	for _, kw := range searches {
		if ctx.Err() != nil {
			break
		}
		// Search failures degrade ranking, never abort it.
		found, err := i.vcs.SearchInFiles(ctx, kw, "")
		if err != nil {
			continue
		}
		seen := map[string]bool{}
		for _, hit := range found {
			if !seen[hit.File] {
				seen[hit.File] = true
				hits[hit.File]++
			}
		}
	}

	type scored struct {
		path  string
		score float64
	}
	var ranked []scored
	for _, path := range files {
		score := 2*analysis.OverlapRatio(keywords, []string{path}) + float64(hits[path])
		if score > 0 {
			ranked = append(ranked, scored{path: path, score: score})
		}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		return ranked[a].path < ranked[b].path
	})

	var selected []string
	for _, s := range ranked {
		selected = append(selected, s.path)
		if len(selected) == maxContextFiles {
			break
		}
	}
	return selected
}

// readAll fans file reads out in parallel, bounded by a buffered-channel
// semaphore. Unreadable files are skipped; the context is best-effort.
func (i *Indexer) readAll(ctx context.Context, paths []string) ([]string, error) {
	parallelism := i.parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	sem := make(chan struct{}, parallelism)

	contents := make([]string, len(paths))
	var wg sync.WaitGroup
	for idx, path := range paths {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			content, err := i.vcs.ReadFile(ctx, path)
			if err != nil {
				return
			}
			contents[idx] = contextopt.Summarize(path, content, summarizeOverLines)
		}(idx, path)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return contents, nil
}

// assembleContext renders the selected files into the structured text the AI
// consumes, collecting declaration symbols along the way.
func assembleContext(paths, contents []string) *secondary.SemanticContext {
	result := &secondary.SemanticContext{}
	var b strings.Builder
	for idx, path := range paths {
		if contents[idx] == "" {
			continue
		}
		result.RelevantFiles = append(result.RelevantFiles, path)

		for _, symbol := range contextopt.Outline(contents[idx]) {
			if len(result.RelevantSymbols) == maxRelevantSymbols {
				break
			}
			result.RelevantSymbols = append(result.RelevantSymbols, symbol)
		}

		fmt.Fprintf(&b, "FILE %s\n", path)
		b.WriteString(contents[idx])
		b.WriteString("\n\n")
	}
	result.StructuredText = strings.TrimRight(b.String(), "\n")
	if result.StructuredText == "" {
		result.StructuredText = "(no readable files matched)"
	}
	return result
}
