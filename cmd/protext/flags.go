package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koprjaa/protext-scraper/internal/config"
)

// addNetworkFlags registers the flags every command that talks to the site needs.
func addNetworkFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("config", "c", "",
		"Configuration file path (default: .protext.yaml in current or home directory)")

	f.String("proxy", config.DefaultTorProxyAddress, "Tor SOCKS5 proxy address")
	f.String("control", config.DefaultControlAddress, "Tor control port address")
	f.String("control-password", "", "Tor control port password")
	f.Bool("no-tor", false, "Connect directly without Tor (no identity rotation)")
	f.Bool("embedded-tor", false, "Start a private Tor daemon instead of using --proxy")
	f.Duration("tor-timeout", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")

	f.Int("retries", config.DefaultMaxRetries, "Attempts per URL before giving up")
	f.Duration("base-delay", config.DefaultBaseDelay, "Base of the exponential backoff")
	f.Float64("rps", 0, "Global request rate cap in requests per second (0 = unlimited)")
	f.Int64("max-body-size", config.DefaultMaxBodySize, "Maximum response body size in bytes")
	f.String("feed-url", "", "RSS feed used to discover the newest article ID")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
}

// addScanFlags registers the scan-only flags.
func addScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("preset", "p", "", fmt.Sprintf("Range preset relative to the newest article %v", config.PresetNames()))
	f.Int("min", 0, "Lowest article ID (default: from preset or discovery)")
	f.Int("max", 0, "Highest article ID (default: from preset or discovery)")
	f.Int("step", config.DefaultStep, "Distance between probed IDs")
	f.String("direction", "newest-first", "Traversal order: newest-first or oldest-first")

	f.IntP("batch", "b", config.DefaultBatchSize, "IDs per batch")
	f.IntP("workers", "w", config.DefaultWorkers, "Concurrent probes per batch")
	f.Int("save-every", config.DefaultSaveEvery, "New records between writes (25, 50, 100 or 200 are typical)")
	f.Duration("delay-min", config.DefaultDelayMin, "Minimum pause between batches")
	f.Duration("delay-max", config.DefaultDelayMax, "Maximum pause between batches")
	f.Int("rotate-every", config.DefaultRotateEvery, "Batches between proactive identity rotations (0 disables)")

	f.String("article-url", "", "Article URL format with one %d for the ID")
	f.Bool("readability", false, "Fall back to readability extraction for article content")

	f.StringP("output-dir", "d", "", "Directory for timestamped output files (default: XDG data dir)")
	f.StringP("output", "o", "", "Exact output file (overrides --output-dir)")
	f.Bool("clean", false, "Remove earlier content_*.json files from the output directory first")
	f.Bool("skip-existing", false, "Skip IDs already present in the output file or SQLite mirror")

	f.StringSlice("categories", nil, "Keep only records in these categories")
	f.String("category-manifest", "", "JSON array of category names to keep")
	f.Int("sample-categories", 0, "Scrape the newest N IDs and print their categories before scanning")
	f.Bool("analyze", false, "Print a category analysis of the output after the scan")

	f.String("sqlite", "", "Mirror records into a SQLite database in this directory")
	f.String("pg-dsn", "", "Mirror records into Postgres at this DSN")
	f.String("pg-schema", config.DefaultPostgresSchema, "Postgres schema for the mirror table")
}

// override copies a flag value into dst when the flag exists on cmd and
// was set by the user.
func override[T any](cmd *cobra.Command, name string, dst *T, get func(string) (T, error)) error {
	if f := cmd.Flags().Lookup(name); f == nil || !f.Changed {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// buildConfig layers defaults, preset sizing, the configuration file and
// explicitly set flags, in that order.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	f := cmd.Flags()

	if err := override(cmd, "config", &cfg.ConfigFilePath, f.GetString); err != nil {
		return nil, err
	}

	var file *config.File
	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		var err error
		if file, err = config.LoadConfigFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	preset := ""
	if file != nil {
		preset = file.Scan.Preset
	}
	if err := override(cmd, "preset", &preset, f.GetString); err != nil {
		return nil, err
	}
	if p, ok := config.LookupPreset(preset); ok {
		p.ApplySizing(cfg)
	}

	if file != nil {
		if err := file.Apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file: %w", err)
		}
	}

	err := errors.Join(
		override(cmd, "proxy", &cfg.TorProxyAddress, f.GetString),
		override(cmd, "control", &cfg.ControlAddress, f.GetString),
		override(cmd, "control-password", &cfg.ControlPassword, f.GetString),
		override(cmd, "no-tor", &cfg.NoTor, f.GetBool),
		override(cmd, "embedded-tor", &cfg.EmbeddedTor, f.GetBool),
		override(cmd, "tor-timeout", &cfg.TorStartupTimeout, f.GetDuration),
		override(cmd, "retries", &cfg.MaxRetries, f.GetInt),
		override(cmd, "base-delay", &cfg.BaseDelay, f.GetDuration),
		override(cmd, "rps", &cfg.RequestsPerSecond, f.GetFloat64),
		override(cmd, "max-body-size", &cfg.MaxBodySize, f.GetInt64),
		override(cmd, "feed-url", &cfg.FeedURL, f.GetString),
		override(cmd, "metrics-addr", &cfg.MetricsAddr, f.GetString),

		override(cmd, "preset", &cfg.Preset, f.GetString),
		override(cmd, "min", &cfg.MinID, f.GetInt),
		override(cmd, "max", &cfg.MaxID, f.GetInt),
		override(cmd, "step", &cfg.Step, f.GetInt),
		override(cmd, "direction", &cfg.Direction, f.GetString),
		override(cmd, "batch", &cfg.BatchSize, f.GetInt),
		override(cmd, "workers", &cfg.Workers, f.GetInt),
		override(cmd, "save-every", &cfg.SaveEvery, f.GetInt),
		override(cmd, "delay-min", &cfg.DelayMin, f.GetDuration),
		override(cmd, "delay-max", &cfg.DelayMax, f.GetDuration),
		override(cmd, "rotate-every", &cfg.RotateEvery, f.GetInt),
		override(cmd, "article-url", &cfg.ArticleURLFormat, f.GetString),
		override(cmd, "readability", &cfg.UseReadability, f.GetBool),
		override(cmd, "output-dir", &cfg.OutputDir, f.GetString),
		override(cmd, "output", &cfg.OutputFile, f.GetString),
		override(cmd, "clean", &cfg.Clean, f.GetBool),
		override(cmd, "skip-existing", &cfg.SkipExisting, f.GetBool),
		override(cmd, "categories", &cfg.Categories, f.GetStringSlice),
		override(cmd, "category-manifest", &cfg.CategoryManifest, f.GetString),
		override(cmd, "sample-categories", &cfg.SampleCategories, f.GetInt),
		override(cmd, "analyze", &cfg.Analyze, f.GetBool),
		override(cmd, "sqlite", &cfg.SQLiteDir, f.GetString),
		override(cmd, "pg-dsn", &cfg.PostgresDSN, f.GetString),
		override(cmd, "pg-schema", &cfg.PostgresSchema, f.GetString),
	)
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}
