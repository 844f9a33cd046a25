package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/conveyor/internal/adapters/tmux"
	"github.com/example/conveyor/internal/wire"
)

// WorkspaceCmd returns the workspace command group.
func WorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage ticket workspaces",
		Long: `Workspaces are the checkouts workflows run in. With repository.local_path
set every ticket shares one fixed checkout; otherwise each ticket gets an
ephemeral clone under the scratch root, cleaned up when the workflow
releases it.`,
	}

	cmd.AddCommand(workspaceListCmd())
	cmd.AddCommand(workspaceCleanCmd())
	cmd.AddCommand(workspaceShellCmd())

	return cmd
}

func workspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scratch workspaces left on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			services, err := wire.Services()
			if err != nil {
				return err
			}

			scratch, err := services.Workspaces.ListScratch(ctx)
			if err != nil {
				return fmt.Errorf("failed to list workspaces: %w", err)
			}

			if len(scratch) == 0 {
				fmt.Println("No scratch workspaces on disk.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TICKET\tPATH\tSIZE")
			fmt.Fprintln(w, "------\t----\t----")
			for _, s := range scratch {
				fmt.Fprintf(w, "%s\t%s\t%d KB\n", s.TicketID, s.Path, s.SizeKB)
			}
			w.Flush()
			return nil
		},
	}
}

func workspaceCleanCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clean [ticket-id]",
		Short: "Remove scratch workspaces",
		Long: `Remove the scratch workspace for a ticket, or every scratch workspace
with --all. Fixed checkouts (repository.local_path) are never touched.

Examples:
  conveyor workspace clean PROJ-123
  conveyor workspace clean --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			ticketID := ""
			if len(args) > 0 {
				ticketID = args[0]
			}
			if ticketID == "" && !all {
				return fmt.Errorf("pass a ticket id or --all to clean everything")
			}

			services, err := wire.Services()
			if err != nil {
				return err
			}

			removed, err := services.Workspaces.CleanScratch(ctx, ticketID)
			if err != nil {
				return fmt.Errorf("failed to clean workspaces: %w", err)
			}

			fmt.Printf("✓ Removed %d workspaces\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Clean every scratch workspace")

	return cmd
}

func workspaceShellCmd() *cobra.Command {
	var kill bool

	cmd := &cobra.Command{
		Use:   "shell [ticket-id]",
		Short: "Open a terminal session in a ticket's workspace",
		Long: `Create (or reuse) a detached tmux session rooted at the ticket's
workspace path and print how to attach to it. With --kill, terminate
the session instead.

Examples:
  conveyor workspace shell PROJ-123
  conveyor workspace shell PROJ-123 --kill`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			services, err := wire.Services()
			if err != nil {
				return err
			}

			if kill {
				if err := services.Workspaces.CloseShell(ctx, args[0]); err != nil {
					return fmt.Errorf("failed to close shell session: %w", err)
				}
				fmt.Printf("✓ Session for %s closed\n", args[0])
				return nil
			}

			name, err := services.Workspaces.OpenShell(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to open shell session: %w", err)
			}

			fmt.Printf("✓ Session %s ready\n", name)
			fmt.Println(tmux.AttachInstructions(name))
			return nil
		},
	}

	cmd.Flags().BoolVar(&kill, "kill", false, "Terminate the session instead of opening it")

	return cmd
}
