package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/koprjaa/protext-scraper/internal/model"
)

// DefaultContentSelectors lists the article body containers tried in order.
// The first selector that matches anything wins; among its matches the
// longest text is kept.
var DefaultContentSelectors = []string{
	"#articlebody",
	`[itemprop="articleBody"]`,
	".omega.seven.columns",
	`article[role="main"]`,
	".article-content",
	".content",
	"article",
	"#content",
}

// KeywordLabels are the captions that precede a keyword line on a page.
var KeywordLabels = []string{"Klíčová slova", "Keywords", "Tagy", "Tags"}

const (
	// noiseInContainer is stripped from a matched content container.
	noiseInContainer = "script, style, nav, header, footer, aside, .note"
	// noiseInDocument is stripped before the whole-document fallback.
	noiseInDocument = "script, style, nav, header, footer, aside"
)

// Option configures an Extractor.
type Option func(*Extractor)

// WithContentSelectors replaces the ordered list of content containers.
func WithContentSelectors(selectors ...string) Option {
	return func(e *Extractor) {
		if len(selectors) > 0 {
			e.contentSelectors = selectors
		}
	}
}

// WithReadability enables the readability pass between the selector
// strategy and the whole-document fallback.
func WithReadability(enabled bool) Option {
	return func(e *Extractor) {
		e.readability = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Extractor turns an article page into a Record.
// It holds no per-page state and is safe for concurrent use.
type Extractor struct {
	contentSelectors []string
	readability      bool
	logger           *slog.Logger
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		contentSelectors: DefaultContentSelectors,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses body and returns the record for id.
// ErrIncomplete is returned when the page has no usable title or content.
func (e *Extractor) Extract(body []byte, contentType, link string, id int) (*model.Record, error) {
	decoded := Decode(body, contentType)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	rec := &model.Record{
		ID:    id,
		Link:  link,
		Title: NormalizeText(title(doc)),
	}

	content := e.selectorContent(doc)
	if content == "" && e.readability {
		content = e.ReadabilityContent(decoded, link)
	}
	if content == "" {
		doc.Find(noiseInDocument).Remove()
		content = nodeText(doc.Nodes...)
	}
	rec.Content = CleanContent(content)

	rec.Date = strings.TrimSpace(date(doc))
	rec.Keywords = keywords(doc)
	rec.Category = category(doc)

	if !rec.Valid() {
		return nil, ErrIncomplete
	}
	return rec, nil
}

// ReadabilityContent runs the readability algorithm over an HTML page and
// returns its plain text, or "" when nothing article-like was found.
func (e *Extractor) ReadabilityContent(html []byte, link string) string {
	pageURL, err := url.Parse(link)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(html), pageURL)
	if err != nil {
		e.logger.Debug("readability failed", "url", link, "error", err)
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func (e *Extractor) selectorContent(doc *goquery.Document) string {
	for _, sel := range e.contentSelectors {
		matches := doc.Find(sel)
		if matches.Length() == 0 {
			continue
		}
		var best string
		matches.Each(func(_ int, s *goquery.Selection) {
			s.Find(noiseInContainer).Remove()
			if text := nodeText(s.Nodes...); utf8.RuneCountInString(text) > utf8.RuneCountInString(best) {
				best = text
			}
		})
		return best
	}
	return ""
}

func title(doc *goquery.Document) string {
	for _, sel := range []string{`h1[itemprop="name headline"]`, "h1", "title"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return nodeText(s.Nodes...)
		}
	}
	return ""
}

func date(doc *goquery.Document) string {
	for _, sel := range []string{`p[itemprop="datePublished"]`, "time", ".date"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s.Text()
		}
	}
	return ""
}

func category(doc *goquery.Document) string {
	if s := doc.Find(`span[itemprop="about"]`).First(); s.Length() > 0 {
		return NormalizeText(s.Text())
	}
	if v, ok := doc.Find(`meta[property="article:section"]`).First().Attr("content"); ok {
		return NormalizeText(v)
	}
	return ""
}

// keywords tries each strategy in turn and keeps the first non-empty line.
func keywords(doc *goquery.Document) string {
	strategies := []func(*goquery.Document) string{
		labelledParagraph,
		labelledElement,
		metaKeywords,
	}
	for _, strategy := range strategies {
		if kw := CleanKeywords(strategy(doc)); kw != "" {
			return kw
		}
	}
	return ""
}

// labelledParagraph finds a <p> whose own text carries the primary label.
func labelledParagraph(doc *goquery.Document) string {
	label := KeywordLabels[0]
	p := doc.Find("p").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(ownText(s.Get(0)), label)
	}).First()
	if p.Length() == 0 {
		return ""
	}
	return strings.ReplaceAll(p.Text(), label, "")
}

// labelledElement finds the first element whose own text carries any label
// and returns that element's full text with the label removed.
func labelledElement(doc *goquery.Document) string {
	for _, label := range KeywordLabels {
		el := doc.Find("body *").Not("script, style").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(ownText(s.Get(0)), label)
		}).First()
		if el.Length() == 0 {
			continue
		}
		// A bare caption like <strong>Tags</strong> keeps its values in the parent.
		text := strings.ReplaceAll(el.Text(), label, "")
		if CleanKeywords(text) == "" && el.Parent().Length() > 0 {
			text = strings.ReplaceAll(el.Parent().Text(), label, "")
		}
		return text
	}
	return ""
}

func metaKeywords(doc *goquery.Document) string {
	v, _ := doc.Find(`meta[name="keywords"]`).First().Attr("content")
	return v
}
