package cli

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/conveyor/internal/db"
	"github.com/example/conveyor/internal/wire"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and collaborator connectivity",
		Long: `Comprehensive health check for conveyor.

Validates:
- Configuration completeness
- Database file and schema
- git and tmux binaries
- Tracker, AI, and pull request host connectivity (live round-trips)

Examples:
  conveyor doctor              # Run full health check
  conveyor doctor --quiet      # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := wire.Services()
			if err != nil {
				return err
			}

			results := []CheckResult{
				checkConfig(services),
				checkDatabase(),
				checkGitBinary(),
				checkTmuxBinary(),
			}
			results = append(results, checkCollaborators(services)...)

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				fmt.Println()
				fmt.Println("Check              Status")
				fmt.Println("─────────────────────────")
				for _, r := range results {
					fmt.Printf("%-18s %s\n", r.Name, r.Status)
				}
				fmt.Println()

				hasDetails := false
				for _, r := range results {
					if r.Status != "✓" && r.Details != "" {
						if !hasDetails {
							fmt.Println("Details:")
							hasDetails = true
						}
						fmt.Printf("\n%s:\n%s\n", r.Name, r.Details)
					}
				}

				if hasErrors {
					fmt.Println("\n⚠ Issues found. Fix the configuration and re-run 'conveyor doctor'.")
				} else {
					fmt.Println("All checks passed.")
				}
			}

			if hasErrors {
				return fmt.Errorf("environment validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - exit code only")

	return cmd
}

// checkConfig reports configuration problems that would break a workflow run
func checkConfig(services *wire.Container) CheckResult {
	problems := services.Config.Validate()
	if len(problems) > 0 {
		return CheckResult{
			Name:    "Configuration",
			Status:  "✗",
			Details: "  " + strings.Join(problems, "\n  ") + "\n  Run: conveyor config init",
		}
	}
	return CheckResult{Name: "Configuration", Status: "✓"}
}

// checkDatabase validates the database opens and the schema is current
func checkDatabase() CheckResult {
	dbPath, err := db.GetDBPath()
	if err != nil {
		return CheckResult{Name: "Database", Status: "✗", Details: "  " + err.Error()}
	}
	if _, err := db.GetDB(); err != nil {
		return CheckResult{
			Name:    "Database",
			Status:  "✗",
			Details: fmt.Sprintf("  Cannot open %s\n  %v", dbPath, err),
		}
	}
	return CheckResult{Name: "Database", Status: "✓", Details: "  " + dbPath}
}

// checkGitBinary validates git is installed
func checkGitBinary() CheckResult {
	path, err := exec.LookPath("git")
	if err != nil {
		return CheckResult{
			Name:    "Git",
			Status:  "✗",
			Details: "  'git' not found in PATH - workflows cannot branch, commit, or push",
		}
	}
	return CheckResult{Name: "Git", Status: "✓", Details: "  " + path}
}

// checkTmuxBinary validates tmux is installed. Optional: only the
// workspace shell command needs it.
func checkTmuxBinary() CheckResult {
	path, err := exec.LookPath("tmux")
	if err != nil {
		return CheckResult{
			Name:    "Tmux",
			Status:  "⚠",
			Details: "  'tmux' not found in PATH - 'conveyor workspace shell' will not work",
		}
	}
	return CheckResult{Name: "Tmux", Status: "✓", Details: "  " + path}
}

// checkCollaborators runs live TestConnection round-trips against the
// tracker, the AI provider, and the pull request host.
func checkCollaborators(services *wire.Container) []CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	results := make([]CheckResult, 0, 3)

	if err := services.Tracker.TestConnection(ctx); err != nil {
		results = append(results, CheckResult{Name: "Tracker", Status: "✗", Details: "  " + err.Error()})
	} else {
		results = append(results, CheckResult{Name: "Tracker", Status: "✓"})
	}

	if err := services.AI.TestConnection(ctx); err != nil {
		results = append(results, CheckResult{Name: "AI", Status: "✗", Details: "  " + err.Error()})
	} else {
		results = append(results, CheckResult{Name: "AI", Status: "✓"})
	}

	if err := services.PullRequests.TestConnection(ctx); err != nil {
		results = append(results, CheckResult{Name: "Pull requests", Status: "✗", Details: "  " + err.Error()})
	} else {
		results = append(results, CheckResult{Name: "Pull requests", Status: "✓"})
	}

	return results
}
