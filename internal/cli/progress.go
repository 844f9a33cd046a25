package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/conveyor/internal/ports/primary"
	"github.com/example/conveyor/internal/wire"
)

// ProgressCmd returns the progress command.
func ProgressCmd() *cobra.Command {
	var follow bool
	var limit int

	cmd := &cobra.Command{
		Use:   "progress [ticket-id]",
		Short: "Show the progress log for a ticket",
		Long: `Print the recorded progress entries for a ticket, oldest first.
With --follow, keep tailing live updates published by workflows running
in this process until interrupted.

Examples:
  conveyor progress PROJ-123
  conveyor progress PROJ-123 --follow
  conveyor progress PROJ-123 --limit 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ticketID := args[0]

			services, err := wire.Services()
			if err != nil {
				return err
			}

			entries, err := services.Progress.History(ctx, ticketID, limit)
			if err != nil {
				return fmt.Errorf("failed to load progress: %w", err)
			}

			if len(entries) == 0 && !follow {
				fmt.Printf("No progress recorded for %s.\n", ticketID)
				return nil
			}
			for _, entry := range entries {
				printProgress(entry)
			}

			if !follow {
				return nil
			}

			followCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stopSignals()

			stream, stop, err := services.Progress.Follow(followCtx, ticketID)
			if err != nil {
				return fmt.Errorf("failed to follow progress: %w", err)
			}
			defer stop()

			fmt.Println("Following live progress (Ctrl+C to stop)...")
			for {
				select {
				case entry, ok := <-stream:
					if !ok {
						return nil
					}
					printProgress(entry)
				case <-followCtx.Done():
					return nil
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream live progress updates")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum history entries to show (0 = all)")

	return cmd
}

func printProgress(entry *primary.ProgressView) {
	fmt.Printf("%s  %3d%%  %-22s %s\n", entry.Timestamp, entry.Percentage, entry.Phase, entry.Message)
}
