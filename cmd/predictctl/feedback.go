package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/feedback"
)

func feedbackCmd() *cobra.Command {
	var fc domain.FeedbackConfig

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Outcome feedback store tools",
	}
	cmd.PersistentFlags().StringVar(&fc.SQLitePath, "db", "data/feedback.db", "SQLite feedback database")
	cmd.PersistentFlags().StringVar(&fc.DatabaseURL, "database-url", "", "Postgres feedback database URL; overrides --db")

	open := func() (feedback.Store, error) {
		cfg := fc
		cfg.Driver = "sqlite"
		if cfg.DatabaseURL != "" {
			cfg.Driver = "postgres"
		}
		return feedback.Open(cfg)
	}

	var outPath string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export all recorded outcomes as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}
			return store.ExportJSON(cmd.Context(), w)
		},
	}
	export.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")

	var inPath string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import outcomes from a JSON export; existing predictions are skipped",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			f, err := os.Open(inPath)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", inPath, err)
			}
			defer f.Close()

			imported, skipped, err := store.ImportJSON(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d outcome(s), skipped %d.\n", imported, skipped)
			return nil
		},
	}
	importCmd.Flags().StringVarP(&inPath, "in", "i", "", "Export file to import")
	_ = importCmd.MarkFlagRequired("in")

	var limit int
	coverage := &cobra.Command{
		Use:   "coverage",
		Short: "Report empirical interval coverage of recorded outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			outcomes, err := store.List(cmd.Context(), limit, 0)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(feedback.Coverage(outcomes))
		},
	}
	coverage.Flags().IntVar(&limit, "limit", 1000, "Most recent outcomes to include")

	cmd.AddCommand(export, importCmd, coverage)
	return cmd
}
