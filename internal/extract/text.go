package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// MinContentRunes is the shortest body text kept as article content.
const MinContentRunes = 50

var (
	cdataPattern      = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	edgeDashPattern   = regexp.MustCompile(`^[-–—:\s]+|[-–—\s]+$`)
)

// NormalizeText unwraps CDATA sections, strips markup, collapses whitespace
// runs to one space, trims and converts to NFC.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = cdataPattern.ReplaceAllString(s, "$1")
	s = tagPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(strings.TrimSpace(s), " ")
	return norm.NFC.String(s)
}

// CleanContent normalizes s like NormalizeText and returns "" when fewer
// than MinContentRunes characters remain.
func CleanContent(s string) string {
	s = NormalizeText(s)
	if utf8.RuneCountInString(s) < MinContentRunes {
		return ""
	}
	return s
}

// CleanKeywords collapses whitespace and trims leading and trailing dashes
// as well as a leading caption colon.
// Lines of two characters or fewer carry no keywords and yield "".
func CleanKeywords(s string) string {
	s = whitespacePattern.ReplaceAllString(strings.TrimSpace(s), " ")
	s = edgeDashPattern.ReplaceAllString(s, "")
	if utf8.RuneCountInString(s) <= 2 {
		return ""
	}
	return norm.NFC.String(s)
}

// nodeText joins the trimmed text nodes below n with single spaces.
// Script and style contents are never included.
func nodeText(nodes ...*html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

// ownText returns the concatenated direct text children of n.
func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
