// Package openai implements the AI port using OpenAI chat completions.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/example/conveyor/internal/ports/secondary"
	"github.com/example/conveyor/internal/retry"
)

// Client produces ticket analyses and code changes via chat completions.
type Client struct {
	*openai.Client
	model       string
	maxTokens   int
	retryPolicy retry.Policy
}

// NewClient creates a Client for the given model. maxTokens caps the
// completion length; zero picks a sane default.
func NewClient(apiKey, model string, maxTokens int) *Client {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{
		Client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		retryPolicy: retry.DefaultPolicy(),
	}
}

var _ secondary.AI = (*Client)(nil)

// AnalyzeTicket produces an analysis of the ticket given compressed code
// context.
func (c *Client) AnalyzeTicket(ctx context.Context, ticket *secondary.Ticket, codeContext string) (*secondary.AnalysisResult, error) {
	content, err := c.complete(ctx, "analyze ticket", analysisSystemPrompt, buildAnalysisPrompt(ticket, codeContext))
	if err != nil {
		return nil, err
	}

	parsed, err := parseAnalysis(content)
	if err != nil {
		return nil, fmt.Errorf("analysis for %s: %w", ticket.ID, err)
	}

	return &secondary.AnalysisResult{
		TicketID:      ticket.ID,
		Summary:       parsed.Summary,
		Approach:      parsed.Approach,
		AffectedFiles: parsed.AffectedFiles,
		Model:         c.model,
		ProducedAt:    time.Now().UTC(),
	}, nil
}

// GenerateCode produces file changes implementing an analysis.
func (c *Client) GenerateCode(ctx context.Context, analysis *secondary.AnalysisResult, codeContext string) ([]secondary.GeneratedFile, error) {
	content, err := c.complete(ctx, "generate code", implementationSystemPrompt, buildImplementationPrompt(analysis, codeContext))
	if err != nil {
		return nil, err
	}

	files, err := parseGeneratedFiles(content)
	if err != nil {
		return nil, fmt.Errorf("implementation for %s: %w", analysis.TicketID, err)
	}
	return files, nil
}

// TestConnection verifies AI service connectivity and credentials.
func (c *Client) TestConnection(ctx context.Context) error {
	if _, err := c.ListModels(ctx); err != nil {
		return fmt.Errorf("ai connection failed: %w", err)
	}
	return nil
}

// complete runs one JSON-mode chat completion and returns the raw content.
func (c *Client) complete(ctx context.Context, op, systemPrompt, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	// Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of
	// MaxTokens.
	if isReasoningModel(c.model) {
		req.MaxCompletionTokens = c.maxTokens
	} else {
		req.MaxTokens = c.maxTokens
	}

	var content string
	err := retry.Do(ctx, c.retryPolicy, op, func() error {
		resp, err := c.CreateChatCompletion(ctx, req)
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("response missing choices")
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			return errors.New("response empty content")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to %s: %w", op, err)
	}
	return content, nil
}

func isReasoningModel(model string) bool {
	model = strings.ToLower(strings.TrimSpace(model))
	return strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5")
}

// classify marks retryable failures. Rate limits and server errors are
// transient; auth and bad-request failures are not.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *openai.APIError
	if errors.As(err, &ae) {
		if ae.HTTPStatusCode == http.StatusTooManyRequests || ae.HTTPStatusCode >= 500 {
			return retry.Transient(err)
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return retry.Transient(err)
}

type analysisPayload struct {
	Summary       string   `json:"summary"`
	Approach      string   `json:"approach"`
	AffectedFiles []string `json:"affected_files"`
}

func parseAnalysis(content string) (*analysisPayload, error) {
	var parsed analysisPayload
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("invalid analysis JSON: %w", err)
	}
	if parsed.Summary == "" {
		return nil, errors.New("analysis missing summary")
	}
	return &parsed, nil
}

func parseGeneratedFiles(content string) ([]secondary.GeneratedFile, error) {
	var parsed struct {
		Files []struct {
			Path    string `json:"path"`
			Action  string `json:"action"`
			Content string `json:"content"`
		} `json:"files"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("invalid implementation JSON: %w", err)
	}
	if len(parsed.Files) == 0 {
		return nil, errors.New("implementation contains no files")
	}

	files := make([]secondary.GeneratedFile, 0, len(parsed.Files))
	for _, f := range parsed.Files {
		if f.Path == "" {
			return nil, errors.New("implementation file missing path")
		}
		action := secondary.FileAction(strings.ToLower(strings.TrimSpace(f.Action)))
		switch action {
		case secondary.FileActionCreate, secondary.FileActionUpdate, secondary.FileActionDelete:
		default:
			return nil, fmt.Errorf("implementation file %s has unknown action %q", f.Path, f.Action)
		}
		files = append(files, secondary.GeneratedFile{
			Path:    f.Path,
			Action:  action,
			Content: f.Content,
		})
	}
	return files, nil
}
