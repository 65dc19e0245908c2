package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bd4predict/predict-api/internal/config"
	"github.com/bd4predict/predict-api/internal/database"
)

func migrateCmd(logger *logrus.Logger) *cobra.Command {
	var configFile, databaseURL, dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run audit database migrations",
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: search standard locations)")
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL; overrides the config file")
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Migrations directory (default: migrations built into the binary)")

	runner := func() (*database.MigrationRunner, error) {
		url := databaseURL
		if url == "" {
			manager, err := config.NewManagerFromFile(configFile)
			if err != nil {
				return nil, err
			}
			url = manager.GetDatabaseURL()
		}
		return database.NewMigrationRunner(url, dir, logger)
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := runner()
			if err != nil {
				return err
			}
			defer r.Close()
			if err := r.Up(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			return printVersion(cmd, r)
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := runner()
			if err != nil {
				return err
			}
			defer r.Close()
			if err := r.Down(cmd.Context()); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All migrations rolled back.")
			return nil
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Show the applied migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := runner()
			if err != nil {
				return err
			}
			defer r.Close()
			return printVersion(cmd, r)
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func printVersion(cmd *cobra.Command, r *database.MigrationRunner) error {
	v, dirty, err := r.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d (dirty: %t)\n", v, dirty)
	return nil
}
