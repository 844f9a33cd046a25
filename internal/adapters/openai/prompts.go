package openai

import (
	"fmt"
	"strings"

	"github.com/example/conveyor/internal/ports/secondary"
)

const analysisSystemPrompt = `You are a senior software engineer assessing a ticket against an existing codebase. You must produce one valid JSON object only (no markdown, no commentary, no code fences) that follows the schema below.

Requirements:
- summary: two or three sentences describing what the ticket asks for and where it lands in this codebase.
- approach: a concrete implementation plan referencing real files and symbols from the provided code context.
- affected_files: repository-relative paths of files the change will touch. List only files that appear in the code context or that the plan creates.
- When reviewer feedback is present in the input, the approach must address it explicitly.

Schema (example with empty values):
{
  "summary": "<string>",
  "approach": "<string>",
  "affected_files": ["<path>"]
}`

const implementationSystemPrompt = `You are a senior software engineer implementing an approved plan. You must produce one valid JSON object only (no markdown, no commentary, no code fences) that follows the schema below.

Requirements:
- files is the complete set of changes; every file in the plan's affected list is either changed here or deliberately omitted.
- action is one of: create, update, delete.
- content holds the full new file body for create and update, and is empty for delete.
- Match the style and conventions visible in the provided code context.

Schema (example with empty values):
{
  "files": [
    {"path": "<path>", "action": "<create|update|delete>", "content": "<string>"}
  ]
}`

func buildAnalysisPrompt(ticket *secondary.Ticket, codeContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s (%s, priority %s): %s\n\n", ticket.ID, ticket.Type, ticket.Priority, ticket.Title)
	b.WriteString("Description:\n")
	b.WriteString(ticket.Description)
	b.WriteString("\n\nCode context:\n")
	b.WriteString(codeContext)
	b.WriteString("\n\nRespond with the JSON per schema.")
	return b.String()
}

func buildImplementationPrompt(analysis *secondary.AnalysisResult, codeContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s approved plan.\n\n", analysis.TicketID)
	b.WriteString("Summary:\n")
	b.WriteString(analysis.Summary)
	b.WriteString("\n\nApproach:\n")
	b.WriteString(analysis.Approach)
	if len(analysis.AffectedFiles) > 0 {
		b.WriteString("\n\nAffected files:\n")
		for _, path := range analysis.AffectedFiles {
			b.WriteString("- ")
			b.WriteString(path)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nCode context:\n")
	b.WriteString(codeContext)
	b.WriteString("\n\nRespond with the JSON per schema.")
	return b.String()
}
