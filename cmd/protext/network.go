package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/koprjaa/protext-scraper/internal/config"
	"github.com/koprjaa/protext-scraper/internal/crawler"
	"github.com/koprjaa/protext-scraper/internal/extract"
	"github.com/koprjaa/protext-scraper/internal/fetch"
	"github.com/koprjaa/protext-scraper/internal/identity"
	"github.com/koprjaa/protext-scraper/internal/metrics"
	"github.com/koprjaa/protext-scraper/internal/tor"
)

// probeHost is the host the SOCKS readiness check asks the proxy to reach.
const probeHost = "www." + crawler.DefaultSiteHost

// network bundles everything that talks to the site.
type network struct {
	client  *fetch.Client
	rotator *identity.Rotator
	records *crawler.RecordFetcher
	stop    func()
}

// egress is the transport and egress controller chosen by the Tor flags.
type egress struct {
	http       fetch.Doer
	controller identity.EgressController
	stop       func()
}

// connectEgress prepares the Tor transport: none with --no-tor, a private
// daemon with --embedded-tor, otherwise the configured proxy and control port.
func connectEgress(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) (*egress, error) {
	noop := func() {}
	if cfg.NoTor {
		logger.Warn("Tor disabled, requests leave from this host and cannot be rotated")
		return &egress{stop: noop}, nil
	}

	if cfg.EmbeddedTor {
		return startEmbeddedTor(ctx, cfg, out, logger)
	}

	client, err := tor.NewClient(cfg.TorProxyAddress, fetch.DefaultTimeoutMax)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx, probeHost); status != tor.ProxyStatusOK {
		return nil, fmt.Errorf("tor proxy check failed: %s (make sure Tor is running at %s, or use --no-tor)",
			status, cfg.TorProxyAddress)
	}
	logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)

	controller, err := tor.NewController(cfg.ControlAddress, tor.WithControlPassword(cfg.ControlPassword))
	if err != nil {
		return nil, fmt.Errorf("failed to create Tor controller: %w", err)
	}
	return &egress{http: client.NewHTTPClient(), controller: controller, stop: noop}, nil
}

// startEmbeddedTor starts a private Tor daemon through tornago.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) (*egress, error) {
	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embedded := tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embedded.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	stop := func() {
		logger.Info("stopping embedded Tor daemon")
		if err := embedded.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}
	logger.Info("embedded Tor daemon started",
		"socksAddr", embedded.SocksAddr(),
		"controlAddr", embedded.ControlAddr(),
	)

	client, err := embedded.NewClient(fetch.DefaultTimeoutMax)
	if err != nil {
		stop()
		return nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx, probeHost); status != tor.ProxyStatusOK {
		stop()
		return nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}
	controller, err := embedded.NewController()
	if err != nil {
		stop()
		return nil, fmt.Errorf("failed to create Tor controller: %w", err)
	}
	return &egress{http: client.NewHTTPClient(), controller: controller, stop: stop}, nil
}

// newNetwork wires the rotator, fetch client and record fetcher on top of
// the chosen egress.
func newNetwork(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger, m *metrics.Metrics) (*network, error) {
	eg, err := connectEgress(ctx, cfg, out, logger)
	if err != nil {
		return nil, err
	}

	rotatorOpts := []identity.Option{identity.WithLogger(logger), identity.WithMetrics(m)}
	if eg.controller != nil {
		rotatorOpts = append(rotatorOpts, identity.WithController(eg.controller))
	}
	rotator := identity.NewRotator(rotatorOpts...)

	policy := fetch.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries
	policy.BaseDelay = cfg.BaseDelay

	fetchOpts := []fetch.Option{
		fetch.WithIdentity(rotator),
		fetch.WithPolicy(policy),
		fetch.WithRateLimit(cfg.RequestsPerSecond),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithLogger(logger),
		fetch.WithMetrics(m),
	}
	if eg.http != nil {
		fetchOpts = append(fetchOpts, fetch.WithHTTPClient(eg.http))
	}
	client := fetch.New(fetchOpts...)

	extractor := extract.New(extract.WithReadability(cfg.UseReadability), extract.WithLogger(logger))
	records := crawler.NewRecordFetcher(client, extractor,
		crawler.WithURLFormat(cfg.ArticleURLFormat),
		crawler.WithFetcherLogger(logger),
	)

	return &network{client: client, rotator: rotator, records: records, stop: eg.stop}, nil
}

// discover reads the latest and oldest article IDs from the feed.
func (n *network) discover(ctx context.Context, cfg *config.Config, logger *slog.Logger) (crawler.Discovery, error) {
	d := crawler.NewDiscoverer(n.client,
		crawler.WithFeedURL(cfg.FeedURL),
		crawler.WithLandingURL(crawler.DefaultLandingURL),
		crawler.WithDiscovererLogger(logger),
	)
	return d.Discover(ctx)
}
