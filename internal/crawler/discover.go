package crawler

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/koprjaa/protext-scraper/internal/fetch"
)

// Discovery defaults.
const (
	DefaultFeedURL  = "https://www.protext.cz/rss/cz.php"
	DefaultSiteHost = "protext.cz"

	// DefaultLandingURL is scanned for article links when the feed yields none.
	DefaultLandingURL = "https://www.protext.cz/"

	// FallbackLatest and FallbackOldest bound the scan when nothing can be
	// discovered.
	FallbackLatest = 200000
	FallbackOldest = 1
)

// discoveryOptions is the small retry budget used for feed requests.
var discoveryOptions = fetch.Options{MaxRetries: 2, BaseDelay: 500 * time.Millisecond}

var articleIDPattern = regexp.MustCompile(`id=(\d+)`)

// FeedFetcher retrieves a URL with a per-call retry budget.
// *fetch.Client implements it.
type FeedFetcher interface {
	FetchWith(ctx context.Context, rawURL string, opts fetch.Options) (*fetch.Response, error)
}

// Discovery is the live ID range learned from the site.
type Discovery struct {
	Latest int
	Oldest int
	// Count is the number of distinct article IDs seen.
	Count int
	// Source is the URL the IDs came from, empty for the fallback range.
	Source string
}

// Found reports whether any live ID was seen.
func (d Discovery) Found() bool {
	return d.Count > 0
}

// Discoverer learns the current ID range from the RSS feed, falling back to
// links on the landing page.
type Discoverer struct {
	pages      FeedFetcher
	feedURL    string
	landingURL string
	host       string
	logger     *slog.Logger
}

// DiscovererOption configures a Discoverer.
type DiscovererOption func(*Discoverer)

// WithFeedURL sets the RSS feed address.
func WithFeedURL(u string) DiscovererOption {
	return func(d *Discoverer) {
		if u != "" {
			d.feedURL = u
		}
	}
}

// WithLandingURL sets a page whose article links are read when the feed
// yields nothing. Empty disables the fallback.
func WithLandingURL(u string) DiscovererOption {
	return func(d *Discoverer) {
		d.landingURL = u
	}
}

// WithSiteHost restricts accepted links to hosts ending in host.
func WithSiteHost(host string) DiscovererOption {
	return func(d *Discoverer) {
		d.host = host
	}
}

// WithDiscovererLogger sets the logger.
func WithDiscovererLogger(logger *slog.Logger) DiscovererOption {
	return func(d *Discoverer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(pages FeedFetcher, opts ...DiscovererOption) *Discoverer {
	d := &Discoverer{
		pages:   pages,
		feedURL: DefaultFeedURL,
		host:    DefaultSiteHost,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover returns the newest and oldest article IDs currently visible.
// When none can be found the result is the fallback range with Count 0.
// Only context cancellation is returned as an error.
func (d *Discoverer) Discover(ctx context.Context) (Discovery, error) {
	ids := d.feedIDs(ctx)
	source := d.feedURL
	if len(ids) == 0 && d.landingURL != "" && ctx.Err() == nil {
		ids = d.landingIDs(ctx)
		source = d.landingURL
	}
	if err := ctx.Err(); err != nil {
		return Discovery{}, err
	}

	if len(ids) == 0 {
		d.logger.Warn("no article IDs discovered, using fallback range",
			"oldest", FallbackOldest, "latest", FallbackLatest)
		return Discovery{Latest: FallbackLatest, Oldest: FallbackOldest}, nil
	}

	slices.Sort(ids)
	ids = slices.Compact(ids)
	found := Discovery{
		Latest: ids[len(ids)-1],
		Oldest: ids[0],
		Count:  len(ids),
		Source: source,
	}
	d.logger.Info("discovered article IDs",
		"source", source, "count", found.Count, "oldest", found.Oldest, "latest", found.Latest)
	return found, nil
}

func (d *Discoverer) feedIDs(ctx context.Context) []int {
	resp, err := d.pages.FetchWith(ctx, d.feedURL, discoveryOptions)
	if err != nil {
		d.logger.Warn("feed unavailable", "url", d.feedURL, "error", err)
		return nil
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		d.logger.Warn("feed unparseable", "url", d.feedURL, "error", err)
		return nil
	}

	var ids []int
	for _, item := range feed.Items {
		link := item.Link
		if link == "" {
			link = item.GUID
		}
		if id, ok := ArticleID(link, d.host); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (d *Discoverer) landingIDs(ctx context.Context) []int {
	resp, err := d.pages.FetchWith(ctx, d.landingURL, discoveryOptions)
	if err != nil {
		d.logger.Warn("landing page unavailable", "url", d.landingURL, "error", err)
		return nil
	}
	base, err := url.Parse(d.landingURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil
	}

	var ids []int
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if id, ok := ArticleID(base.ResolveReference(ref).String(), d.host); ok {
			ids = append(ids, id)
		}
	})
	return ids
}

// ArticleID extracts the numeric article ID from a link.
// Links on other hosts than host (or its subdomains) are rejected; an empty
// host accepts any.
func ArticleID(link, host string) (int, bool) {
	link = strings.TrimSpace(link)
	if link == "" {
		return 0, false
	}
	if host != "" {
		u, err := url.Parse(link)
		if err != nil {
			return 0, false
		}
		h := strings.ToLower(u.Hostname())
		if h != host && !strings.HasSuffix(h, "."+host) {
			return 0, false
		}
	}
	m := articleIDPattern.FindStringSubmatch(link)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
