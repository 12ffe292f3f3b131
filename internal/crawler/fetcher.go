package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/koprjaa/protext-scraper/internal/extract"
	"github.com/koprjaa/protext-scraper/internal/fetch"
	"github.com/koprjaa/protext-scraper/internal/model"
)

// DefaultArticleURLFormat is the canonical article address; %d is the ID.
const DefaultArticleURLFormat = "https://www.protext.cz/zprava.php?id=%d"

// PageFetcher retrieves a URL. *fetch.Client implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Extractor builds a record from a page. *extract.Extractor implements it.
type Extractor interface {
	Extract(body []byte, contentType, link string, id int) (*model.Record, error)
}

// RecordFetcher turns one numeric ID into a Record.
type RecordFetcher struct {
	pages     PageFetcher
	extractor Extractor
	urlFormat string
	logger    *slog.Logger
}

// FetcherOption configures a RecordFetcher.
type FetcherOption func(*RecordFetcher)

// WithURLFormat sets the article URL format. It must contain one %d verb.
func WithURLFormat(format string) FetcherOption {
	return func(f *RecordFetcher) {
		if format != "" {
			f.urlFormat = format
		}
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *RecordFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewRecordFetcher creates a RecordFetcher.
func NewRecordFetcher(pages PageFetcher, extractor Extractor, opts ...FetcherOption) *RecordFetcher {
	f := &RecordFetcher{
		pages:     pages,
		extractor: extractor,
		urlFormat: DefaultArticleURLFormat,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the canonical article URL for id.
func (f *RecordFetcher) URL(id int) string {
	return fmt.Sprintf(f.urlFormat, id)
}

// FetchRecord fetches and extracts the article with the given id.
//
// A nil record with a nil error means "no article here": the fetch budget
// ran out or the page had no usable title or content. Only context
// cancellation is reported as an error.
func (f *RecordFetcher) FetchRecord(ctx context.Context, id int) (*model.Record, error) {
	link := f.URL(id)

	resp, err := f.pages.Fetch(ctx, link)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, fetch.ErrExhausted) {
			f.logger.Debug("fetch failed", "id", id, "error", err)
		}
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	rec, err := f.extractor.Extract(resp.Body, resp.Header.Get("Content-Type"), link, id)
	if err != nil {
		if !errors.Is(err, extract.ErrIncomplete) {
			f.logger.Debug("extraction failed", "id", id, "error", err)
		}
		return nil, nil
	}
	return rec, nil
}

// ValidateURLFormat reports whether format holds exactly one %d verb and
// no other formatting verbs.
func ValidateURLFormat(format string) bool {
	rest := strings.ReplaceAll(format, "%%", "")
	return strings.Count(rest, "%") == 1 && strings.Count(rest, "%d") == 1
}
