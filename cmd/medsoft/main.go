package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/medsoft/medsoft/internal/config"
	"github.com/medsoft/medsoft/internal/platform/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medsoft",
		Short: "Reception and chief patient registration servers",
	}

	rootCmd.AddCommand(receptionCmd())
	rootCmd.AddCommand(chiefCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func receptionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reception",
		Short: "Start the reception server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReception()
		},
	}
}

func chiefCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chief",
		Short: "Start the chief server and dashboard channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChief()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, _ := cmd.Flags().GetString("service")
			target, _ := cmd.Flags().GetInt("to")

			migrator, closeDB, err := openMigrator(cmd.Context(), service)
			if err != nil {
				return err
			}
			defer closeDB()

			var count int
			if target > 0 {
				count, err = migrator.UpTo(cmd.Context(), target)
			} else {
				count, err = migrator.Up(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) for %s.\n", count, service)
			return nil
		},
	}
	upCmd.Flags().String("service", config.ServiceReception, "Service whose schema to migrate (reception|chief)")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies all)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, _ := cmd.Flags().GetString("service")

			migrator, closeDB, err := openMigrator(cmd.Context(), service)
			if err != nil {
				return err
			}
			defer closeDB()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), service, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("service", config.ServiceReception, "Service whose schema to inspect (reception|chief)")
	cmd.AddCommand(statusCmd)

	return cmd
}

// openMigrator loads the service config and opens its database.
func openMigrator(ctx context.Context, service string) (*db.Migrator, func(), error) {
	migrations, err := migrationsFor(service)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loadConfig(service)
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Open(ctx, dbOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	migrator, err := database.Migrator(migrations)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return migrator, database.Close, nil
}
