package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/conveyor/internal/wire"
)

// CacheCmd returns the cache command group.
func CacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the analysis cache",
		Long: `The analysis cache stores AI analysis results keyed by ticket content,
so re-analyzing an unchanged ticket costs no AI calls. Entries expire
after cache.ttl_hours.`,
	}

	cmd.AddCommand(cacheStatsCmd())
	cmd.AddCommand(cacheListCmd())
	cmd.AddCommand(cachePruneCmd())
	cmd.AddCommand(cacheClearCmd())
	cmd.AddCommand(cacheSimilarCmd())

	return cmd
}

func cacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the cache contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			services, err := wire.Services()
			if err != nil {
				return err
			}

			stats, err := services.Cache.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to read cache stats: %w", err)
			}

			fmt.Printf("Entries: %d\n", stats.Entries)
			fmt.Printf("Expired: %d\n", stats.Expired)
			if stats.Entries > 0 {
				fmt.Printf("Oldest:  %s\n", stats.OldestCached)
				fmt.Printf("Newest:  %s\n", stats.NewestCached)
			}
			if stats.Expired > 0 {
				fmt.Println()
				fmt.Println("Remove expired entries:")
				fmt.Println("  conveyor cache prune")
			}
			return nil
		},
	}
}

func cacheListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cache entries, most recently cached first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			services, err := wire.Services()
			if err != nil {
				return err
			}

			entries, err := services.Cache.Entries(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list cache entries: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("Cache is empty.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TICKET\tSUMMARY\tCACHED\tLAST USED\tEXPIRED")
			fmt.Fprintln(w, "------\t-------\t------\t---------\t-------")
			for _, e := range entries {
				expired := ""
				if e.Expired {
					expired = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.TicketID,
					truncate(e.Summary, 48),
					e.CachedAt,
					e.LastAccessedAt,
					expired,
				)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum entries to show (0 = all)")

	return cmd
}

func cachePruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			services, err := wire.Services()
			if err != nil {
				return err
			}

			removed, err := services.Cache.Prune(ctx)
			if err != nil {
				return fmt.Errorf("failed to prune cache: %w", err)
			}

			fmt.Printf("✓ Removed %d expired entries\n", removed)
			return nil
		},
	}
}

func cacheClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if !force {
				fmt.Print("Remove all cached analyses? [y/N] ")
				var response string
				fmt.Scanln(&response)
				if response != "y" && response != "Y" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			services, err := wire.Services()
			if err != nil {
				return err
			}

			removed, err := services.Cache.Clear(ctx)
			if err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}

			fmt.Printf("✓ Removed %d entries\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")

	return cmd
}

func cacheSimilarCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "similar [ticket-id]",
		Short: "Find cached analyses for tickets similar to this one",
		Long: `Rank cached analyses for other tickets by keyword overlap with this
ticket's title and description. Useful for spotting prior art before
approving an analysis.

Examples:
  conveyor cache similar PROJ-123
  conveyor cache similar PROJ-123 --limit 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			services, err := wire.Services()
			if err != nil {
				return err
			}

			matches, err := services.Cache.FindSimilar(ctx, args[0], limit)
			if err != nil {
				return fmt.Errorf("failed to find similar analyses: %w", err)
			}

			if len(matches) == 0 {
				fmt.Println("No similar cached analyses found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "SCORE\tTICKET\tSUMMARY\tCACHED")
			fmt.Fprintln(w, "-----\t------\t-------\t------")
			for _, m := range matches {
				fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\n",
					m.Score,
					m.Entry.TicketID,
					truncate(m.Entry.Summary, 48),
					m.Entry.CachedAt,
				)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum matches to show")

	return cmd
}
