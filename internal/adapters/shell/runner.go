// Package shell implements the BuildRunner port by running the configured
// build and test command lines inside a workspace.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/example/conveyor/internal/ports/secondary"
)

// Runner executes the configured build and test commands. A non-zero exit is
// a result, not an error; errors mean the command could not run at all.
type Runner struct {
	buildCommand string
	testCommand  string
}

// NewRunner creates a Runner for the given command lines.
func NewRunner(buildCommand, testCommand string) *Runner {
	return &Runner{
		buildCommand: buildCommand,
		testCommand:  testCommand,
	}
}

var _ secondary.BuildRunner = (*Runner)(nil)

// Build runs the build command in dir.
func (r *Runner) Build(ctx context.Context, dir string) (*secondary.BuildResult, error) {
	output, passed, err := r.run(ctx, dir, r.buildCommand, "build")
	if err != nil {
		return nil, err
	}
	return &secondary.BuildResult{
		Passed: passed,
		Output: output,
	}, nil
}

// Test runs the test command in dir and parses a failed-test count from the
// output when it fails.
func (r *Runner) Test(ctx context.Context, dir string) (*secondary.TestResult, error) {
	output, passed, err := r.run(ctx, dir, r.testCommand, "test")
	if err != nil {
		return nil, err
	}
	result := &secondary.TestResult{
		Passed: passed,
		Output: output,
	}
	if !passed {
		result.FailedCount = countFailedTests(output)
	}
	return result, nil
}

func (r *Runner) run(ctx context.Context, dir, commandLine, op string) (string, bool, error) {
	if strings.TrimSpace(commandLine) == "" {
		return "", false, fmt.Errorf("no %s command configured", op)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", commandLine)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return "", false, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(output), false, nil
		}
		return "", false, fmt.Errorf("failed to run %s command: %w", op, err)
	}
	return string(output), true, nil
}

// failedCountPattern matches summary lines like "3 failed" from non-Go
// runners.
var failedCountPattern = regexp.MustCompile(`(\d+) failed`)

// countFailedTests extracts a failed-test count from runner output. Go test
// output counts "--- FAIL:" lines; other runners fall back to an "N failed"
// summary. An unparseable failure counts as one.
func countFailedTests(output string) int {
	if count := strings.Count(output, "--- FAIL:"); count > 0 {
		return count
	}
	if m := failedCountPattern.FindStringSubmatch(output); m != nil {
		if count, err := strconv.Atoi(m[1]); err == nil && count > 0 {
			return count
		}
	}
	return 1
}
