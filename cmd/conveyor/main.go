package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/conveyor/internal/cli"
	"github.com/example/conveyor/internal/version"
	"github.com/example/conveyor/internal/wire"
)

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:     "conveyor",
		Short:   "Conveyor - ticket-to-PR delivery pipeline",
		Version: version.String(),
		Long: `Conveyor drives tickets from the issue tracker to an opened pull
request: fetch, AI analysis, human approval, code generation, build,
test, commit, push, pull request, tracker update.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(cli.WorkflowCmd())
	rootCmd.AddCommand(cli.ProgressCmd())
	rootCmd.AddCommand(cli.CacheCmd())
	rootCmd.AddCommand(cli.WorkspaceCmd())
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.ConfigCmd())
	rootCmd.AddCommand(cli.VersionCmd())
	rootCmd.AddCommand(cli.DevCmd())

	err := rootCmd.Execute()
	wire.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
