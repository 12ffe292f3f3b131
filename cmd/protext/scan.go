package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/koprjaa/protext-scraper/internal/config"
	"github.com/koprjaa/protext-scraper/internal/crawler"
	"github.com/koprjaa/protext-scraper/internal/database"
	"github.com/koprjaa/protext-scraper/internal/metrics"
	"github.com/koprjaa/protext-scraper/internal/model"
	"github.com/koprjaa/protext-scraper/internal/pipeline"
	"github.com/koprjaa/protext-scraper/internal/report"
	"github.com/koprjaa/protext-scraper/internal/store"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scrape an article ID range",
		Long: `Scan probes article IDs in ordered batches and appends every article it
finds to a deduplicated JSON file.

The range comes from --min/--max, from a --preset counted back from the
newest article in the RSS feed, or from the whole discovered range.
Records are written every --save-every new articles and once more on
exit, including after Ctrl-C.

Examples:
  # Quick test over the newest 100 IDs
  protext scan --preset test

  # Explicit range, oldest first, only two categories
  protext scan --min 90000 --max 91000 --direction oldest-first --categories Finance,Zdraví

  # Continue an earlier file without refetching what it already holds
  protext scan --preset large -o news.json --skip-existing

  # Mirror into SQLite and serve metrics
  protext scan --preset small --sqlite ./db --metrics-addr 127.0.0.1:9464`,
		Args: cobra.NoArgs,
		RunE: runScanCmd,
	}

	addNetworkFlags(cmd)
	addScanFlags(cmd)
	return cmd
}

func runScanCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runScan(ctx, cfg, cmd.OutOrStdout(), logger)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, saving collected records...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// runScan executes one scan run.
func runScan(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	logger = logger.With("run_id", uuid.NewString())

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	nw, err := newNetwork(ctx, cfg, out, logger, m)
	if err != nil {
		return err
	}
	defer nw.stop()

	rng, err := resolveRange(ctx, cfg, nw, logger)
	if err != nil {
		return err
	}

	if cfg.SampleCategories > 0 {
		if err := sampleCategories(ctx, cfg, nw, rng.Max, out, logger); err != nil {
			return err
		}
	}

	filter, err := categoryFilter(cfg)
	if err != nil {
		return err
	}

	if cfg.Clean && cfg.OutputFile == "" {
		cleanOutputs(cfg.OutputDir, logger)
	}
	dest := cfg.OutputPath(time.Now())

	sqlite, mirrors, closeMirrors, err := openMirrors(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeMirrors()

	ledger := crawler.NewLedger()
	if cfg.SkipExisting {
		seedLedger(ctx, ledger, dest, sqlite, logger)
	}

	js := store.NewJSONStore(store.WithLogger(logger))
	sink := store.NewMultiSink(logger, js.Sink(dest), mirrors...)

	plan := scanPlan(cfg, rng, filter)
	scheduler := pipeline.NewScheduler(nw.records,
		pipeline.WithSink(sink),
		pipeline.WithRotator(nw.rotator),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
	)

	fmt.Fprintf(out, "Scanning %s (%d batches of %d, %d workers) into %s\n",
		rng, rng.NumBatches(plan.BatchSize), plan.BatchSize, plan.Workers, dest)
	if filter != nil {
		fmt.Fprintf(out, "Keeping categories: %v\n", filter.Names())
	}

	res, scanErr := scheduler.Scan(ctx, plan, ledger)
	if res != nil {
		printSummary(out, res, dest)
		if cfg.Analyze {
			if err := analyzeFile(out, dest); err != nil {
				logger.Warn("category analysis failed", "path", dest, "error", err)
			}
		}
	}

	if errors.Is(scanErr, context.Canceled) {
		fmt.Fprintln(out, "Scan interrupted; collected records were saved.")
		return nil
	}
	return scanErr
}

// resolveRange takes explicit bounds as they are and otherwise asks the
// feed for the newest and oldest IDs.
func resolveRange(ctx context.Context, cfg *config.Config, nw *network, logger *slog.Logger) (model.IDRange, error) {
	if cfg.MinID > 0 && cfg.MaxID > 0 {
		return cfg.ResolveRange(cfg.MaxID, cfg.MinID), nil
	}
	d, err := nw.discover(ctx, cfg, logger)
	if err != nil {
		return model.IDRange{}, err
	}
	rng := cfg.ResolveRange(d.Latest, d.Oldest)
	if rng.Min > rng.Max {
		return model.IDRange{}, fmt.Errorf("%w: %s", config.ErrInvalidRange, rng)
	}
	return rng, nil
}

// scanPlan turns the configuration into a scheduler plan.
func scanPlan(cfg *config.Config, rng model.IDRange, filter model.CategoryFilter) pipeline.Plan {
	plan := pipeline.DefaultPlan(rng)
	plan.BatchSize = cfg.BatchSize
	plan.Workers = cfg.Workers
	plan.SaveEvery = cfg.SaveEvery
	plan.Filter = filter
	plan.DelayMin = cfg.DelayMin
	plan.DelayMax = cfg.DelayMax
	plan.RotateEvery = cfg.RotateEvery
	return plan
}

// categoryFilter merges --categories with the manifest. No names means no filter.
func categoryFilter(cfg *config.Config) (model.CategoryFilter, error) {
	names := append([]string(nil), cfg.Categories...)
	if cfg.CategoryManifest != "" {
		fromFile, err := config.LoadCategoryManifest(cfg.CategoryManifest)
		if err != nil {
			return nil, fmt.Errorf("failed to load category manifest: %w", err)
		}
		names = append(names, fromFile...)
	}
	if len(names) == 0 {
		return nil, nil
	}
	return model.NewCategoryFilter(names...), nil
}

// sampleCategories scrapes the newest IDs without a filter or sink and
// prints their category histogram. When a manifest path is configured but
// missing, the sampled names are saved there.
func sampleCategories(ctx context.Context, cfg *config.Config, nw *network, latest int, out io.Writer, logger *slog.Logger) error {
	rng := model.IDRange{
		Min:       max(latest-cfg.SampleCategories+1, 1),
		Max:       latest,
		Step:      1,
		Direction: model.NewestFirst,
	}
	fmt.Fprintf(out, "Sampling categories from %s...\n", rng)

	scheduler := pipeline.NewScheduler(nw.records,
		pipeline.WithRotator(nw.rotator),
		pipeline.WithLogger(logger),
	)
	res, err := scheduler.Scan(ctx, scanPlan(cfg, rng, nil), crawler.NewLedger())
	if err != nil {
		return err
	}

	analysis := report.Analyze(res.Records, time.Now())
	if _, err := report.NewSimpleWriter(out).Write(analysis); err != nil {
		return err
	}

	if cfg.CategoryManifest != "" && len(analysis.Categories) > 0 {
		if _, err := os.Stat(cfg.CategoryManifest); errors.Is(err, os.ErrNotExist) {
			if err := config.SaveCategoryManifest(cfg.CategoryManifest, analysis.Names()); err != nil {
				return fmt.Errorf("failed to save category manifest: %w", err)
			}
			fmt.Fprintf(out, "Saved %d categories to %s\n", len(analysis.Categories), cfg.CategoryManifest)
		}
	}
	return nil
}

// cleanOutputs removes earlier timestamped scan outputs from dir.
func cleanOutputs(dir string, logger *slog.Logger) {
	matches, err := filepath.Glob(filepath.Join(dir, config.OutputPrefix+"_*.json"))
	if err != nil {
		logger.Warn("cannot list old outputs", "dir", dir, "error", err)
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			logger.Warn("cannot remove old output", "path", path, "error", err)
			continue
		}
		logger.Info("removed old output", "path", path)
	}
}

// openMirrors opens the configured SQL mirrors. The SQLite mirror is also
// returned on its own for ledger seeding.
func openMirrors(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*database.SQLiteMirror, []store.Sink, func(), error) {
	var (
		sqlite  *database.SQLiteMirror
		mirrors []store.Sink
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.SQLiteDir != "" {
		db, err := database.OpenSQLite(cfg.SQLiteDir, database.DefaultOptions())
		if err != nil {
			return nil, nil, closeAll, fmt.Errorf("failed to open SQLite mirror: %w", err)
		}
		logger.Info("SQLite mirror opened", "path", db.Path())
		sqlite = db
		mirrors = append(mirrors, db)
		closers = append(closers, func() { _ = db.Close() }) //nolint:errcheck // best effort on exit
	}

	if cfg.PostgresDSN != "" {
		opts := database.PostgresOptions{Schema: cfg.PostgresSchema}
		pg, err := database.OpenPostgres(ctx, cfg.PostgresDSN, opts)
		if err != nil {
			closeAll()
			return nil, nil, func() {}, fmt.Errorf("failed to open Postgres mirror: %w", err)
		}
		logger.Info("Postgres mirror opened", "schema", opts.Schema)
		mirrors = append(mirrors, pg)
		closers = append(closers, pg.Close)
	}

	return sqlite, mirrors, closeAll, nil
}

// seedLedger pre-claims IDs stored by earlier runs so they are not fetched again.
func seedLedger(ctx context.Context, ledger *crawler.Ledger, dest string, sqlite *database.SQLiteMirror, logger *slog.Logger) {
	ids, err := store.LoadIDs(dest)
	if err != nil {
		logger.Warn("cannot read existing output, nothing skipped", "path", dest, "error", err)
	}
	ledger.Seed(ids)

	if sqlite != nil {
		dbIDs, err := sqlite.IDs(ctx)
		if err != nil {
			logger.Warn("cannot read SQLite mirror IDs", "error", err)
		}
		ledger.Seed(dbIDs)
	}
	logger.Info("skipping existing articles", "count", ledger.Len())
}

// printSummary prints the run summary.
func printSummary(out io.Writer, res *pipeline.Result, dest string) {
	s := res.Stats
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records found: %d (new: %d, duplicates: %d)\n", len(res.Records), s.Written, s.Duplicates)
	fmt.Fprintf(out, "IDs probed:    %d in %d batches (%d failed, %d filtered)\n", s.Probed, s.Batches, s.Failed, s.Filtered)
	fmt.Fprintf(out, "Rotations:     %d\n", s.Rotations)
	fmt.Fprintf(out, "Elapsed:       %s\n", s.Elapsed.Round(time.Second))
	if info, err := os.Stat(dest); err == nil {
		fmt.Fprintf(out, "Output:        %s (%.2f MB)\n", dest, float64(info.Size())/(1024*1024))
	} else {
		fmt.Fprintf(out, "Output:        %s (not written)\n", dest)
	}
	if s.FlushFailures > 0 {
		fmt.Fprintf(out, "Warning: %d writes failed; see the log.\n", s.FlushFailures)
	}
}

// analyzeFile prints the category histogram of the file at path.
func analyzeFile(out io.Writer, path string) error {
	records, err := store.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	_, err = report.NewSimpleWriter(out).Write(report.Analyze(records, time.Now()))
	return err
}
