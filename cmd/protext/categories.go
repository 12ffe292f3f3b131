package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/koprjaa/protext-scraper/internal/model"
	"github.com/koprjaa/protext-scraper/internal/report"
	"github.com/koprjaa/protext-scraper/internal/store"
)

const (
	categoriesPrefix = "categories"
	filteredPrefix   = "filtered_content"
)

// NewCategoriesCmd creates the categories command.
func NewCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories <file>",
		Short: "Analyze the categories of a scraped file",
		Long: `Categories prints how many articles of a scraped file fall into each
category and saves the histogram as categories_YYYYMMDD_HHMMSS.json next to
the input (or in --output-dir).

With --markdown a Markdown report with a pie chart is written as well.
With --filter the matching articles are copied to
filtered_content_YYYYMMDD_HHMMSS.json.

Examples:
  protext categories content_20250314_092653.json
  protext categories news.json --markdown --top 15
  protext categories news.json --filter Finance,Zdraví`,
		Args: cobra.ExactArgs(1),
		RunE: runCategoriesCmd,
	}

	cmd.Flags().Bool("markdown", false, "also write a Markdown report")
	cmd.Flags().Int("top", 0, "print only the N largest categories (0 prints all)")
	cmd.Flags().Bool("no-save", false, "print the analysis without writing files")
	cmd.Flags().StringP("output-dir", "d", "", "directory for generated files (default: next to the input)")
	cmd.Flags().StringSlice("filter", nil, "write the articles of these categories to a filtered file")

	return cmd
}

func runCategoriesCmd(cmd *cobra.Command, args []string) error {
	path := args[0]
	markdownOut, _ := cmd.Flags().GetBool("markdown")      //nolint:errcheck // flag is registered above
	top, _ := cmd.Flags().GetInt("top")                    //nolint:errcheck // flag is registered above
	noSave, _ := cmd.Flags().GetBool("no-save")            //nolint:errcheck // flag is registered above
	outDir, _ := cmd.Flags().GetString("output-dir")       //nolint:errcheck // flag is registered above
	filterNames, _ := cmd.Flags().GetStringSlice("filter") //nolint:errcheck // flag is registered above

	if top < 0 {
		return fmt.Errorf("--top must not be negative, got %d", top)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("input file not found: %s", path)
		}
		return err
	}

	records, err := store.Load(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	now := time.Now()
	analysis := report.Analyze(records, now)
	if _, err := report.NewSimpleWriter(out, report.WithLimit(top)).Write(analysis); err != nil {
		return err
	}

	if noSave {
		return nil
	}
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	saved, err := saveAnalysis(analysis, outDir, now, markdownOut)
	if err != nil {
		return err
	}
	for _, p := range saved {
		fmt.Fprintf(out, "Saved %s\n", p)
	}

	if len(filterNames) > 0 {
		filtered := report.FilterRecords(records, model.NewCategoryFilter(filterNames...))
		dest := filepath.Join(outDir, report.FileName(filteredPrefix, now, "json"))
		js := store.NewJSONStore(store.WithLogger(setupLogger(cmd, cmd.ErrOrStderr())))
		res, err := js.Append(cmd.Context(), filtered, dest)
		if err != nil {
			return fmt.Errorf("failed to write filtered records: %w", err)
		}
		fmt.Fprintf(out, "Saved %d of %d articles to %s\n", res.Written, len(records), dest)
	}
	return nil
}

// saveAnalysis writes the JSON histogram and, when asked, the Markdown
// report. It returns the paths written.
func saveAnalysis(analysis *report.Analysis, dir string, now time.Time, withMarkdown bool) (paths []string, err error) {
	jsonPath := filepath.Join(dir, report.FileName(categoriesPrefix, now, "json"))
	jsonFile, err := os.Create(filepath.Clean(jsonPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", jsonPath, err)
	}
	defer func() {
		if cerr := jsonFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	writers := []report.Writer{report.NewJSONWriter(jsonFile, report.WithPrettyPrint())}
	paths = append(paths, jsonPath)

	if withMarkdown {
		mdPath := filepath.Join(dir, report.FileName(categoriesPrefix, now, "md"))
		mdFile, err := os.Create(filepath.Clean(mdPath))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", mdPath, err)
		}
		defer mdFile.Close() //nolint:errcheck // written through the MultiWriter below
		writers = append(writers, report.NewMarkdownWriter(mdFile))
		paths = append(paths, mdPath)
	}

	if _, err := report.NewMultiWriter(writers...).Write(analysis); err != nil {
		return nil, fmt.Errorf("failed to write category analysis: %w", err)
	}
	return paths, nil
}
