package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/conveyor/internal/db"
)

// DevCmd returns the dev command group for development utilities.
func DevCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Development utilities (use via conveyor-dev shim)",
		Long: `Development utilities for working with the conveyor dev database.

These commands are intended to be run via a shim that sets
CONVEYOR_DB_PATH to a scratch database. Running without it errors to
prevent accidental modification of the production database.`,
	}

	cmd.AddCommand(devResetCmd())
	return cmd
}

func devResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset dev database with fresh fixtures",
		Long: `Delete the dev database and recreate it with fixture data.

This command:
1. Deletes the existing dev database file
2. Creates a fresh database with the current schema
3. Seeds fixture data for development

Safety: This command requires CONVEYOR_DB_PATH to be set to prevent
accidental reset of the production database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Safety check: require CONVEYOR_DB_PATH to be set
			dbPath := os.Getenv("CONVEYOR_DB_PATH")
			if dbPath == "" {
				return fmt.Errorf("CONVEYOR_DB_PATH not set\n\nThis safety check prevents accidental reset of your production database")
			}

			// Confirmation unless --force
			if !force {
				fmt.Printf("This will delete and recreate: %s\n", dbPath)
				fmt.Print("Continue? [y/N] ")
				var response string
				fmt.Scanln(&response)
				if response != "y" && response != "Y" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			// Close any existing DB connection
			db.Close()

			// Delete existing database
			if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete database: %w", err)
			}
			fmt.Printf("✓ Deleted %s\n", dbPath)

			// Create fresh database with schema
			database, err := db.GetDB()
			if err != nil {
				return fmt.Errorf("failed to create database: %w", err)
			}
			fmt.Println("✓ Created fresh database with schema")

			// Seed fixtures
			if err := db.SeedFixtures(database); err != nil {
				return fmt.Errorf("failed to seed fixtures: %w", err)
			}
			fmt.Println("✓ Seeded fixture data")

			fmt.Println("\nDev database reset complete!")
			fmt.Println("\nSeeded entities:")
			fmt.Println("  - 3 workflows (waiting_approval, completed, not_started)")
			fmt.Println("  - 2 cache entries")
			fmt.Println("  - 4 progress entries")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}
