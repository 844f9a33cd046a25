package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/conveyor/internal/config"
)

// ConfigCmd returns the config command group.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the conveyor configuration file",
		Long: `The configuration lives at ~/.conveyor/config.yaml (CONVEYOR_CONFIG
overrides the path). Secrets can stay out of the file: CONVEYOR_TRACKER_TOKEN,
OPENAI_API_KEY, and GITHUB_TOKEN override their config fields.`,
	}

	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configShowCmd())

	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file with defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := config.Save(config.DefaultConfig()); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Printf("✓ Wrote %s\n", path)
			fmt.Println()
			fmt.Println("Fill in at least:")
			fmt.Println("  tracker.base_url, tracker.email, tracker.api_token")
			fmt.Println("  ai.api_key")
			fmt.Println("  repository.url or repository.local_path")
			fmt.Println("  pull_requests.owner, pull_requests.repo, pull_requests.token")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}

			cfg, err := config.LoadOrDefault()
			if err != nil {
				return err
			}

			redacted := *cfg
			redacted.Tracker.APIToken = redactSecret(cfg.Tracker.APIToken)
			redacted.AI.APIKey = redactSecret(cfg.AI.APIKey)
			redacted.PullRequests.Token = redactSecret(cfg.PullRequests.Token)

			data, err := yaml.Marshal(&redacted)
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}

			fmt.Printf("# %s\n", path)
			fmt.Print(string(data))

			if problems := cfg.Validate(); len(problems) > 0 {
				fmt.Println()
				fmt.Println("Problems:")
				for _, p := range problems {
					fmt.Printf("  - %s\n", p)
				}
			}
			return nil
		},
	}
}

func redactSecret(value string) string {
	if value == "" {
		return ""
	}
	return "(set)"
}
