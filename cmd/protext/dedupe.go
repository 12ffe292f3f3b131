package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koprjaa/protext-scraper/internal/store"
)

// NewDedupeCmd creates the dedupe command.
func NewDedupeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe <file>",
		Short: "Remove duplicate articles from a scraped file",
		Long: `Dedupe rewrites a scraped file keeping only the first record of each
article ID. The file is replaced atomically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(cmd, cmd.ErrOrStderr())
			js := store.NewJSONStore(store.WithLogger(logger))

			res, err := js.Compact(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to dedupe %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Original records: %d\n", res.Original)
			fmt.Fprintf(out, "Cleaned records:  %d\n", res.Cleaned)
			fmt.Fprintf(out, "Removed:          %d\n", res.Removed())
			return nil
		},
	}
}
