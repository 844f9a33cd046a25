// Package git implements the VersionControl port with the git CLI.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/example/conveyor/internal/ports/secondary"
)

// Client runs git commands against one active repository path.
//
// SwitchRepository claims the client until the returned restore runs, so a
// pipeline can bracket a workspace without another caller retargeting the
// client mid-flight. Brackets do not nest.
type Client struct {
	sessionMu sync.Mutex

	mu   sync.Mutex
	path string
}

// NewClient creates a Client targeting path. An empty path is allowed; every
// operation fails until SwitchRepository sets one.
func NewClient(path string) *Client {
	return &Client{path: path}
}

var _ secondary.VersionControl = (*Client)(nil)

// SwitchRepository retargets the client to path and returns a restore
// closure that puts the previous target back and releases the client.
func (c *Client) SwitchRepository(path string) (restore func()) {
	c.sessionMu.Lock()

	c.mu.Lock()
	previous := c.path
	c.path = path
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		c.path = previous
		c.mu.Unlock()
		c.sessionMu.Unlock()
	}
}

func (c *Client) activePath() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" {
		return "", errors.New("no active repository")
	}
	return c.path, nil
}

// Pull fast-forwards the current branch from its upstream.
func (c *Client) Pull(ctx context.Context) error {
	path, err := c.activePath()
	if err != nil {
		return err
	}
	if err := c.runGit(ctx, path, "pull", "--ff-only"); err != nil {
		return fmt.Errorf("failed to pull: %w", err)
	}
	return nil
}

// Checkout switches the working tree to branch.
func (c *Client) Checkout(ctx context.Context, branch string) error {
	path, err := c.activePath()
	if err != nil {
		return err
	}
	if err := c.runGit(ctx, path, "checkout", branch); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", branch, err)
	}
	return nil
}

// CreateBranch creates a new branch from a base branch. An already existing
// branch is not an error; a rerun after a failed pipeline reuses it.
func (c *Client) CreateBranch(ctx context.Context, name, base string) error {
	path, err := c.activePath()
	if err != nil {
		return err
	}

	// rev-parse returns an error when the branch doesn't exist - that's the
	// expected case here, not a failure.
	if verifyErr := c.runGit(ctx, path, "rev-parse", "--verify", name); verifyErr == nil {
		return nil
	}

	// Fetch first so origin/<base> points at the latest remote state.
	_ = c.runGit(ctx, path, "fetch", "origin", base)

	if err := c.runGit(ctx, path, "branch", name, "origin/"+base); err != nil {
		// Try without the origin prefix for local-only base branches.
		if err2 := c.runGit(ctx, path, "branch", name, base); err2 != nil {
			return fmt.Errorf("failed to create branch %s: %w", name, err)
		}
	}
	return nil
}

// StageAll stages every change in the working tree, including deletions.
func (c *Client) StageAll(ctx context.Context) error {
	path, err := c.activePath()
	if err != nil {
		return err
	}
	if err := c.runGit(ctx, path, "add", "-A"); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	return nil
}

// Commit records the staged changes and returns the new commit.
func (c *Client) Commit(ctx context.Context, message string) (*secondary.CommitInfo, error) {
	path, err := c.activePath()
	if err != nil {
		return nil, err
	}
	if err := c.runGit(ctx, path, "commit", "-m", message); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	hash, err := c.runGitOutput(ctx, path, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve commit hash: %w", err)
	}
	return &secondary.CommitInfo{
		Hash:    strings.TrimSpace(hash),
		Message: message,
	}, nil
}

// Push publishes branch to origin, setting the upstream on first push.
func (c *Client) Push(ctx context.Context, branch string) error {
	path, err := c.activePath()
	if err != nil {
		return err
	}
	if err := c.runGit(ctx, path, "push", "-u", "origin", branch); err != nil {
		return fmt.Errorf("failed to push %s: %w", branch, err)
	}
	return nil
}

// GetStatus reports the current branch and any uncommitted changes.
func (c *Client) GetStatus(ctx context.Context) (*secondary.RepoStatus, error) {
	path, err := c.activePath()
	if err != nil {
		return nil, err
	}

	branch, err := c.runGitOutput(ctx, path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to get current branch: %w", err)
	}

	porcelain, err := c.runGitOutput(ctx, path, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	status := &secondary.RepoStatus{
		Branch: strings.TrimSpace(branch),
		Clean:  strings.TrimSpace(porcelain) == "",
	}
	for _, line := range strings.Split(strings.TrimSpace(porcelain), "\n") {
		if len(line) <= 3 {
			continue
		}
		// Lines look like "XY path"; the first two columns are status codes.
		status.ChangedFiles = append(status.ChangedFiles, strings.TrimSpace(line[2:]))
	}
	return status, nil
}

// CloneRepository clones url into path. The target directory's parent must
// exist; git creates the final component.
func (c *Client) CloneRepository(ctx context.Context, url, path string) error {
	if err := c.runGit(ctx, "", "clone", url, path); err != nil {
		return fmt.Errorf("failed to clone %s: %w", url, err)
	}
	return nil
}

// DiscardChanges throws away all uncommitted work, tracked and untracked.
func (c *Client) DiscardChanges(ctx context.Context) error {
	path, err := c.activePath()
	if err != nil {
		return err
	}
	if err := c.runGit(ctx, path, "reset", "--hard"); err != nil {
		return fmt.Errorf("failed to reset working tree: %w", err)
	}
	if err := c.runGit(ctx, path, "clean", "-fd"); err != nil {
		return fmt.Errorf("failed to remove untracked files: %w", err)
	}
	return nil
}

// SearchInFiles greps tracked files for term, optionally restricted to a
// pathspec pattern. No matches is an empty result, not an error.
func (c *Client) SearchInFiles(ctx context.Context, term, filePattern string) ([]secondary.SearchHit, error) {
	path, err := c.activePath()
	if err != nil {
		return nil, err
	}

	args := []string{"grep", "-I", "-n", "--fixed-strings", term}
	if filePattern != "" {
		args = append(args, "--", filePattern)
	}
	out, err := c.runGitOutput(ctx, path, args...)
	if err != nil {
		// git grep exits 1 when nothing matched.
		if exitCode(err) == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search for %q: %w", term, err)
	}

	var hits []secondary.SearchHit
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		lineNo, convErr := strconv.Atoi(parts[1])
		if convErr != nil {
			continue
		}
		hits = append(hits, secondary.SearchHit{
			File: parts[0],
			Line: lineNo,
			Text: parts[2],
		})
	}
	return hits, nil
}

// ListFiles returns tracked files, optionally restricted to a pathspec
// pattern.
func (c *Client) ListFiles(ctx context.Context, pattern string) ([]string, error) {
	path, err := c.activePath()
	if err != nil {
		return nil, err
	}

	args := []string{"ls-files"}
	if pattern != "" {
		args = append(args, "--", pattern)
	}
	out, err := c.runGitOutput(ctx, path, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var files []string
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// ReadFile returns the working-tree content of a repository-relative path.
func (c *Client) ReadFile(ctx context.Context, path string) (string, error) {
	repoPath, err := c.activePath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(repoPath, path))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// runGit executes a git command and returns an error if it fails.
func (c *Client) runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, stderr.String())
	}
	return nil
}

// runGitOutput executes a git command and returns its stdout.
func (c *Client) runGitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
