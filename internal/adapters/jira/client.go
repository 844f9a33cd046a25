// Package jira implements the TicketTracker port against the Jira REST API.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/conveyor/internal/core/workflow"
	"github.com/example/conveyor/internal/ports/secondary"
	"github.com/example/conveyor/internal/retry"
)

// Client talks to a Jira instance using email + API token basic auth.
type Client struct {
	baseURL     string
	email       string
	apiToken    string
	client      *http.Client
	retryPolicy retry.Policy
}

// NewClient creates a Client for baseURL (e.g. https://company.atlassian.net).
func NewClient(baseURL, email, apiToken string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		email:       email,
		apiToken:    apiToken,
		client:      &http.Client{Timeout: 30 * time.Second},
		retryPolicy: retry.DefaultPolicy(),
	}
}

var _ secondary.TicketTracker = (*Client)(nil)

// GetTicket fetches a ticket by id.
func (c *Client) GetTicket(ctx context.Context, id string) (*secondary.Ticket, error) {
	var response struct {
		Key    string `json:"key"`
		Fields struct {
			Summary     string `json:"summary"`
			Description string `json:"description"`
			IssueType   struct {
				Name string `json:"name"`
			} `json:"issuetype"`
			Priority struct {
				Name string `json:"name"`
			} `json:"priority"`
		} `json:"fields"`
	}

	path := "/rest/api/2/issue/" + url.PathEscape(id)
	query := map[string]string{"fields": "summary,description,issuetype,priority"}
	err := retry.Do(ctx, c.retryPolicy, "fetch ticket", func() error {
		return classify(c.doJSON(ctx, http.MethodGet, path, query, nil, &response))
	})
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, fmt.Errorf("ticket %s: %w", id, workflow.ErrTicketNotFound)
		}
		return nil, fmt.Errorf("failed to fetch ticket %s: %w", id, err)
	}

	return &secondary.Ticket{
		ID:          response.Key,
		Title:       response.Fields.Summary,
		Description: response.Fields.Description,
		Type:        response.Fields.IssueType.Name,
		Priority:    response.Fields.Priority.Name,
	}, nil
}

// AddComment posts a comment on a ticket.
func (c *Client) AddComment(ctx context.Context, id, text string) error {
	path := "/rest/api/2/issue/" + url.PathEscape(id) + "/comment"
	payload := map[string]any{"body": text}
	err := retry.Do(ctx, c.retryPolicy, "add comment", func() error {
		return classify(c.doJSON(ctx, http.MethodPost, path, nil, payload, nil))
	})
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return fmt.Errorf("ticket %s: %w", id, workflow.ErrTicketNotFound)
		}
		return fmt.Errorf("failed to comment on %s: %w", id, err)
	}
	return nil
}

// AddRemoteLink attaches an external link (e.g. a pull request) to a ticket.
func (c *Client) AddRemoteLink(ctx context.Context, id, linkURL, title string) error {
	path := "/rest/api/2/issue/" + url.PathEscape(id) + "/remotelink"
	payload := map[string]any{
		"object": map[string]any{
			"url":   linkURL,
			"title": title,
		},
	}
	err := retry.Do(ctx, c.retryPolicy, "add remote link", func() error {
		return classify(c.doJSON(ctx, http.MethodPost, path, nil, payload, nil))
	})
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return fmt.Errorf("ticket %s: %w", id, workflow.ErrTicketNotFound)
		}
		return fmt.Errorf("failed to link %s: %w", id, err)
	}
	return nil
}

// TestConnection verifies tracker connectivity and credentials.
func (c *Client) TestConnection(ctx context.Context) error {
	if err := classify(c.doJSON(ctx, http.MethodGet, "/rest/api/2/myself", nil, nil, nil)); err != nil {
		return fmt.Errorf("tracker connection failed: %w", err)
	}
	return nil
}

// apiError carries the HTTP status so callers can branch on it after the
// retry wrapping.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("tracker http %d: %s", e.Status, e.Message)
}

// classify marks retryable failures. Rate limits, server errors, and network
// failures are transient; 4xx responses are not.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *apiError
	if errors.As(err, &ae) {
		if ae.Status == http.StatusTooManyRequests || ae.Status >= 500 {
			return retry.Transient(err)
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return retry.Transient(err)
}

// statusOf extracts the HTTP status from an error chain, or 0.
func statusOf(err error) int {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

func (c *Client) doJSON(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	parsed, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		values := parsed.Query()
		for key, value := range query {
			values.Set(key, value)
		}
		parsed.RawQuery = values.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequestWithContext(ctx, method, parsed.String(), reader)
	if err != nil {
		return err
	}
	request.SetBasicAuth(c.email, c.apiToken)
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return &apiError{
			Status:  response.StatusCode,
			Message: jiraErrorMessage(payload),
		}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(out)
}

// jiraErrorMessage pulls the human-readable part out of a Jira error payload.
func jiraErrorMessage(payload []byte) string {
	var wrapper struct {
		ErrorMessages []string `json:"errorMessages"`
	}
	if err := json.Unmarshal(payload, &wrapper); err == nil && len(wrapper.ErrorMessages) > 0 {
		return strings.Join(wrapper.ErrorMessages, "; ")
	}
	return strings.TrimSpace(string(payload))
}
