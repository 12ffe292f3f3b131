package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/koprjaa/protext-scraper/internal/log"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "protext",
		Short: "Concurrent article scraper for protext.cz",
		Long: `protext harvests press releases from protext.cz by probing the numeric
article ID space in ordered batches.

Requests go through Tor by default (SOCKS5 127.0.0.1:9050, control port
127.0.0.1:9051) so that the egress identity can be rotated when the site
starts blocking. Use --embedded-tor to start a private Tor daemon or
--no-tor to connect directly.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewDiscoverCmd())
	cmd.AddCommand(NewCategoriesCmd())
	cmd.AddCommand(NewDedupeCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the sanitizing logger selected by the persistent flags.
func setupLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	verbose := getVerboseFlag(cmd)
	if jsonLogs, err := cmd.Flags().GetBool("log-json"); err == nil && jsonLogs {
		return log.NewSecureJSONLogger(w, verbose)
	}
	return log.NewSecureLogger(w, verbose)
}
