// Package github implements the PullRequestService port against the GitHub
// REST API.
package github

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

	"github.com/example/conveyor/internal/ports/secondary"
	"github.com/example/conveyor/internal/retry"
)

// Client opens pull requests on one repository.
type Client struct {
	baseURL     string
	token       string
	owner       string
	repo        string
	client      *http.Client
	retryPolicy retry.Policy
}

// NewClient creates a Client for owner/repo. baseURL is normally
// https://api.github.com; GitHub Enterprise installs pass their API root.
func NewClient(baseURL, token, owner, repo string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:       token,
		owner:       owner,
		repo:        repo,
		client:      &http.Client{Timeout: 30 * time.Second},
		retryPolicy: retry.DefaultPolicy(),
	}
}

var _ secondary.PullRequestService = (*Client)(nil)

// CreatePullRequest opens a pull request.
func (c *Client) CreatePullRequest(ctx context.Context, req secondary.PullRequestRequest) (*secondary.PullRequestInfo, error) {
	payload := map[string]any{
		"title": req.Title,
		"body":  req.Description,
		"head":  req.SourceBranch,
		"base":  req.TargetBranch,
	}
	var response struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
		Title   string `json:"title"`
		Head    struct {
			Ref string `json:"ref"`
		} `json:"head"`
	}

	path := fmt.Sprintf("/repos/%s/%s/pulls", url.PathEscape(c.owner), url.PathEscape(c.repo))
	err := retry.Do(ctx, c.retryPolicy, "create pull request", func() error {
		return classify(c.doJSON(ctx, http.MethodPost, path, payload, &response))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request for %s: %w", req.SourceBranch, err)
	}

	return &secondary.PullRequestInfo{
		Number:       response.Number,
		URL:          response.HTMLURL,
		Title:        response.Title,
		SourceBranch: response.Head.Ref,
	}, nil
}

// TestConnection verifies provider connectivity and repository access.
func (c *Client) TestConnection(ctx context.Context) error {
	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(c.owner), url.PathEscape(c.repo))
	if err := classify(c.doJSON(ctx, http.MethodGet, path, nil, nil)); err != nil {
		return fmt.Errorf("pull request provider connection failed: %w", err)
	}
	return nil
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("github http %d: %s", e.Status, e.Message)
}

// classify marks retryable failures. Rate limits, server errors, and network
// failures are transient; 4xx responses (bad request, auth, PR already
// exists) are not.
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

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	request.Header.Set("Authorization", "Bearer "+c.token)
	request.Header.Set("Accept", "application/vnd.github+json")
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
			Message: githubErrorMessage(payload),
		}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(out)
}

// githubErrorMessage pulls the message (and first sub-error, when present)
// out of a GitHub error payload.
func githubErrorMessage(payload []byte) string {
	var wrapper struct {
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(payload, &wrapper); err == nil && wrapper.Message != "" {
		if len(wrapper.Errors) > 0 && wrapper.Errors[0].Message != "" {
			return wrapper.Message + ": " + wrapper.Errors[0].Message
		}
		return wrapper.Message
	}
	return strings.TrimSpace(string(payload))
}
