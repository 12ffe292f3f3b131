package identity

import "net/http"

// Signature is a coherent browser fingerprint: a User-Agent and the request
// headers that browser really sends next to it. Chromium builds carry client
// hints that agree with the User-Agent; Firefox and Safari send none.
type Signature struct {
	UserAgent string

	// Client hints, empty for browsers that do not send them.
	SecChUa         string
	SecChUaMobile   string
	SecChUaPlatform string

	AcceptLanguage string
}

const (
	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
	acceptEncoding = "gzip, deflate, br"
)

// Headers returns the full request header set for the signature.
func (s Signature) Headers() http.Header {
	h := make(http.Header, 16)
	h.Set("User-Agent", s.UserAgent)
	h.Set("Accept", acceptHTML)
	lang := s.AcceptLanguage
	if lang == "" {
		lang = "en-US,en;q=0.7"
	}
	h.Set("Accept-Language", lang)
	h.Set("Accept-Encoding", acceptEncoding)
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Cache-Control", "max-age=0")
	h.Set("DNT", "1")
	if s.SecChUa != "" {
		h.Set("Sec-Ch-Ua", s.SecChUa)
		h.Set("Sec-Ch-Ua-Mobile", s.SecChUaMobile)
		h.Set("Sec-Ch-Ua-Platform", s.SecChUaPlatform)
	}
	return h
}

// Apply copies the signature's headers onto req, replacing existing values.
func (s Signature) Apply(req *http.Request) {
	for k, v := range s.Headers() {
		req.Header[k] = v
	}
}

const (
	chrome120 = `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`
	chrome119 = `"Google Chrome";v="119", "Chromium";v="119", "Not?A_Brand";v="24"`
	edge120   = `"Not_A Brand";v="8", "Chromium";v="120", "Microsoft Edge";v="120"`
)

// pool is the fixed set of signatures the rotator draws from.
var pool = []Signature{
	// Chrome, desktop
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		SecChUa:         chrome120,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"Windows"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		SecChUa:         chrome119,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"Windows"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		SecChUa:         chrome120,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"macOS"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		SecChUa:         chrome119,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"macOS"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		SecChUa:         chrome120,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"Linux"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		SecChUa:         chrome119,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"Linux"`,
	},

	// Edge
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
		SecChUa:         edge120,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"Windows"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
		SecChUa:         edge120,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"macOS"`,
	},

	// Firefox
	{UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0", AcceptLanguage: "en-US,en;q=0.5"},
	{UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0", AcceptLanguage: "en-US,en;q=0.5"},
	{UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0", AcceptLanguage: "en-US,en;q=0.5"},
	{UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", AcceptLanguage: "en-US,en;q=0.5"},
	{UserAgent: "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0", AcceptLanguage: "en-US,en;q=0.5"},

	// Safari
	{UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15", AcceptLanguage: "en-US,en;q=0.9"},
	{UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15", AcceptLanguage: "en-US,en;q=0.9"},

	// Mobile
	{
		UserAgent:       "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		SecChUa:         chrome120,
		SecChUaMobile:   "?1",
		SecChUaPlatform: `"Android"`,
	},
	{UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1", AcceptLanguage: "en-US,en;q=0.9"},
	{UserAgent: "Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1", AcceptLanguage: "en-US,en;q=0.9"},
	{UserAgent: "Mozilla/5.0 (Android 14; Mobile; rv:121.0) Gecko/121.0 Firefox/121.0", AcceptLanguage: "en-US,en;q=0.5"},
}

// Pool returns a copy of the built-in signature pool.
func Pool() []Signature {
	return append([]Signature(nil), pool...)
}
