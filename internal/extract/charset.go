package extract

import (
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

// minDetectorConfidence is the chardet confidence (0-100) below which its
// guess is ignored.
const minDetectorConfidence = 50

// Decode converts an HTML body to UTF-8.
//
// The encoding comes from the Content-Type header, a BOM or a <meta> tag.
// When none of those is authoritative and the bytes are not valid UTF-8,
// chardet guesses from the content. Undecodable bodies are returned as-is.
func Decode(body []byte, contentType string) []byte {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if !certain {
		if utf8.Valid(body) {
			return body
		}
		if guess, guessName := detect(body); guess != nil {
			enc, name = guess, guessName
		}
	}
	if name == "utf-8" || enc == nil || enc == encoding.Nop {
		return body
	}

	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return out
}

func detect(body []byte) (encoding.Encoding, string) {
	result, err := chardet.NewHtmlDetector().DetectBest(body)
	if err != nil || result.Confidence < minDetectorConfidence {
		return nil, ""
	}
	return charset.Lookup(result.Charset)
}
