package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/koprjaa/protext-scraper/internal/config"
	"github.com/koprjaa/protext-scraper/internal/crawler"
)

// NewDiscoverCmd creates the discover command.
func NewDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Show the article ID range currently published",
		Long: `Discover reads the RSS feed (falling back to the landing page) and
prints the newest and oldest article IDs it links to, together with the
ID range each preset would scan.`,
		Args: cobra.NoArgs,
		RunE: runDiscoverCmd,
	}

	addNetworkFlags(cmd)
	return cmd
}

func runDiscoverCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cmd.ErrOrStderr())
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	nw, err := newNetwork(ctx, cfg, cmd.OutOrStdout(), logger, nil)
	if err != nil {
		return err
	}
	defer nw.stop()

	d, err := nw.discover(ctx, cfg, logger)
	if err != nil {
		return err
	}
	printDiscovery(cmd.OutOrStdout(), d)
	return nil
}

func printDiscovery(out io.Writer, d crawler.Discovery) {
	source := d.Source
	if !d.Found() {
		source = "none (fallback range)"
	}
	fmt.Fprintf(out, "Source:    %s\n", source)
	fmt.Fprintf(out, "Latest ID: %d\n", d.Latest)
	fmt.Fprintf(out, "Oldest ID: %d\n", d.Oldest)
	fmt.Fprintf(out, "Linked:    %d articles\n", d.Count)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Preset ranges:")
	for _, name := range config.PresetNames() {
		p, _ := config.LookupPreset(name)
		minID, maxID := p.Range(d.Latest, d.Oldest)
		fmt.Fprintf(out, "  %-8s %d-%d (%d IDs)\n", name, minID, maxID, max(maxID-minID+1, 0))
	}
}
