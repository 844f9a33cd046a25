package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/conveyor/internal/core/workflow"
	"github.com/example/conveyor/internal/ports/primary"
	"github.com/example/conveyor/internal/wire"
)

// WorkflowCmd returns the workflow command group.
func WorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Drive ticket workflows through the delivery pipeline",
		Long: `Drive a ticket from tracker fetch through analysis, implementation,
build, test, commit, push, and pull request.

The usual flow:
  conveyor workflow start PROJ-123     # analyze, stop for approval
  conveyor workflow approve PROJ-123   # implement the pending analysis
  conveyor workflow status PROJ-123    # check where things stand`,
	}

	cmd.AddCommand(workflowCreateCmd())
	cmd.AddCommand(workflowStartCmd())
	cmd.AddCommand(workflowAnalyzeCmd())
	cmd.AddCommand(workflowApproveCmd())
	cmd.AddCommand(workflowReviseCmd())
	cmd.AddCommand(workflowCancelCmd())
	cmd.AddCommand(workflowStatusCmd())
	cmd.AddCommand(workflowListCmd())

	return cmd
}

func workflowCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create [ticket-id]",
		Short: "Create a workflow for a ticket without running anything",
		Long: `Create the workflow record for a ticket. Idempotent: if the ticket
already has a workflow, the existing one is returned untouched.

Examples:
  conveyor workflow create PROJ-123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			services, err := wire.Services()
			if err != nil {
				return err
			}

			wf, err := services.Workflows.CreateWorkflow(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to create workflow: %w", err)
			}

			fmt.Printf("✓ Workflow for %s: %s (phase %s)\n", wf.TicketID, wf.Title, wf.Phase)
			fmt.Println()
			fmt.Printf("Run it:\n  conveyor workflow start %s\n", wf.TicketID)
			return nil
		},
	}
}

func workflowStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [ticket-id]",
		Short: "Analyze a ticket and implement it when approval is not required",
		Long: `Fetch the ticket, analyze it, and when pipeline.require_approval is
off chain straight into implementation. With approval on (the default)
the workflow stops at waiting_approval.

Examples:
  conveyor workflow start PROJ-123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			services, err := wire.Services()
			if err != nil {
				return err
			}

			wf, err := services.Workflows.StartWorkflow(ctx, args[0])
			if err != nil {
				return fmt.Errorf("workflow failed: %w", err)
			}

			printWorkflow(wf)
			printNextSteps(wf)
			return nil
		},
	}
}

func workflowAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [ticket-id]",
		Short: "Analyze a ticket and stop for review",
		Long: `Fetch the ticket and produce an implementation analysis. Cached
analyses are reused when the ticket text has not changed since the
last run.

Examples:
  conveyor workflow analyze PROJ-123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			services, err := wire.Services()
			if err != nil {
				return err
			}

			wf, err := services.Workflows.Analyze(ctx, args[0])
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			printWorkflow(wf)
			printNextSteps(wf)
			return nil
		},
	}
}

func workflowApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve [ticket-id]",
		Short: "Approve the pending analysis and implement it",
		Long: `Consume the pending analysis and drive the implementation pipeline:
branch, code generation, build, test, commit, push, pull request,
tracker update.

Examples:
  conveyor workflow approve PROJ-123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			services, err := wire.Services()
			if err != nil {
				return err
			}

			wf, err := services.Workflows.ApproveAndImplement(ctx, args[0])
			if err != nil {
				return fmt.Errorf("implementation failed: %w", err)
			}

			printWorkflow(wf)
			printNextSteps(wf)
			return nil
		},
	}
}

func workflowReviseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revise [ticket-id] [feedback...]",
		Short: "Reject the pending analysis with feedback and re-analyze",
		Long: `Discard the pending analysis and run a fresh one with the feedback
threaded into the AI prompt. Feedback accumulates across revisions.

Examples:
  conveyor workflow revise PROJ-123 use the existing retry helper instead`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			feedback := strings.Join(args[1:], " ")

			services, err := wire.Services()
			if err != nil {
				return err
			}

			wf, err := services.Workflows.RequestRevision(ctx, args[0], feedback)
			if err != nil {
				return fmt.Errorf("revision failed: %w", err)
			}

			printWorkflow(wf)
			printNextSteps(wf)
			return nil
		},
	}
}

func workflowCancelCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel [ticket-id]",
		Short: "Cancel a workflow",
		Long: `Stop the workflow for a ticket. An in-flight run is interrupted,
the pending analysis is discarded, and uncommitted workspace changes
are thrown away.

Examples:
  conveyor workflow cancel PROJ-123
  conveyor workflow cancel PROJ-123 --reason "requirements changed"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			services, err := wire.Services()
			if err != nil {
				return err
			}

			if err := services.Workflows.CancelWorkflow(ctx, args[0], reason); err != nil {
				return fmt.Errorf("cancel failed: %w", err)
			}

			fmt.Printf("✓ Workflow %s cancelled\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the workflow is being cancelled")

	return cmd
}

func workflowStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [ticket-id]",
		Short: "Show the current state of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			services, err := wire.Services()
			if err != nil {
				return err
			}

			status, err := services.Workflows.GetWorkflowStatus(ctx, args[0])
			if err != nil {
				return err
			}

			if status.Workflow != nil {
				printWorkflow(status.Workflow)
			}
			if status.Progress != nil {
				fmt.Printf("\nLast progress: %3d%% %s - %s (%s)\n",
					status.Progress.Percentage,
					status.Progress.Phase,
					status.Progress.Message,
					status.Progress.Timestamp,
				)
			}
			if status.Workflow != nil {
				printNextSteps(status.Workflow)
			}
			return nil
		},
	}
}

func workflowListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			services, err := wire.Services()
			if err != nil {
				return err
			}

			workflows, err := services.Workflows.GetWorkflowHistory(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list workflows: %w", err)
			}

			if len(workflows) == 0 {
				fmt.Println("No workflows found.")
				fmt.Println()
				fmt.Println("Start one:")
				fmt.Println("  conveyor workflow start PROJ-123")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TICKET\tTITLE\tPHASE\tSTATE\tUPDATED")
			fmt.Fprintln(w, "------\t-----\t-----\t-----\t-------")
			for _, wf := range workflows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					wf.TicketID,
					truncate(wf.Title, 40),
					wf.Phase,
					stateBadge(wf.State),
					wf.UpdatedAt,
				)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum workflows to show (0 = all)")

	return cmd
}

// printWorkflow renders the detail view shared by start, analyze, approve,
// revise, and status.
func printWorkflow(wf *primary.Workflow) {
	fmt.Printf("Ticket:  %s", wf.TicketID)
	if wf.Title != "" {
		fmt.Printf("  %s", wf.Title)
	}
	fmt.Println()
	fmt.Printf("Phase:   %s (%s)\n", wf.Phase, stateBadge(wf.State))
	fmt.Printf("Started: %s\n", wf.StartedAt)
	if wf.CompletedAt != "" {
		fmt.Printf("Done:    %s\n", wf.CompletedAt)
	}

	if wf.Analysis != nil {
		cached := ""
		if wf.Analysis.FromCache {
			cached = ", cached"
		}
		fmt.Printf("\nAnalysis (model %s%s):\n", wf.Analysis.Model, cached)
		fmt.Printf("  Summary:  %s\n", wf.Analysis.Summary)
		fmt.Printf("  Approach: %s\n", wf.Analysis.Approach)
		if len(wf.Analysis.AffectedFiles) > 0 {
			fmt.Println("  Affected files:")
			for _, f := range wf.Analysis.AffectedFiles {
				fmt.Printf("    - %s\n", f)
			}
		}
	}

	if wf.Implementation != nil {
		impl := wf.Implementation
		fmt.Println("\nImplementation:")
		fmt.Printf("  Branch: %s\n", impl.Branch)
		fmt.Printf("  Files:  %d created, %d updated, %d deleted\n",
			impl.FilesCreated, impl.FilesUpdated, impl.FilesDeleted)
		if impl.BuildPassed != nil {
			fmt.Printf("  Build:  %s\n", passBadge(*impl.BuildPassed))
		}
		if impl.TestsPassed != nil {
			if *impl.TestsPassed {
				fmt.Printf("  Tests:  %s\n", passBadge(true))
			} else {
				fmt.Printf("  Tests:  %s (%d failed)\n", passBadge(false), impl.FailedTests)
			}
		}
		if impl.CommitHash != "" {
			fmt.Printf("  Commit: %s\n", impl.CommitHash)
		}
	}

	if wf.PullRequest != nil {
		fmt.Printf("\nPull request: #%d %s\n", wf.PullRequest.Number, wf.PullRequest.URL)
	}

	if len(wf.Feedback) > 0 {
		fmt.Println("\nFeedback:")
		for _, f := range wf.Feedback {
			fmt.Printf("  - %s\n", f)
		}
	}

	if len(wf.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range wf.Errors {
			fmt.Printf("  - %s\n", color.New(color.FgRed).Sprint(e))
		}
	}
}

// printNextSteps prints the follow-up commands for the workflow's state.
func printNextSteps(wf *primary.Workflow) {
	if wf.PendingReview {
		fmt.Println()
		fmt.Println("Analysis awaits review:")
		fmt.Printf("  conveyor workflow approve %s\n", wf.TicketID)
		fmt.Printf("  conveyor workflow revise %s <feedback>\n", wf.TicketID)
	}
}

func stateBadge(state string) string {
	switch state {
	case string(workflow.StateCompleted):
		return color.New(color.FgGreen).Sprint(state)
	case string(workflow.StateFailed):
		return color.New(color.FgRed).Sprint(state)
	case string(workflow.StateCancelled):
		return color.New(color.FgYellow).Sprint(state)
	case string(workflow.StateWaitingInput):
		return color.New(color.FgCyan).Sprint(state)
	case string(workflow.StateRunning):
		return color.New(color.FgHiBlue).Sprint(state)
	default:
		return state
	}
}

func passBadge(passed bool) string {
	if passed {
		return color.New(color.FgGreen).Sprint("passed")
	}
	return color.New(color.FgRed).Sprint("failed")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
