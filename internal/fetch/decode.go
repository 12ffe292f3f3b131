package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// decodeBody undoes the Content-Encoding chain of a response body, reading at
// most limit decoded bytes.
func decodeBody(raw []byte, contentEncoding string, limit int64) ([]byte, error) {
	encodings := strings.Split(contentEncoding, ",")
	body := raw

	// Encodings are listed in the order they were applied.
	for i := len(encodings) - 1; i >= 0; i-- {
		enc := strings.ToLower(strings.TrimSpace(encodings[i]))

		var r io.Reader
		switch enc {
		case "", "identity":
			continue
		case "gzip", "x-gzip":
			zr, err := gzip.NewReader(bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("gzip: %w", err)
			}
			defer zr.Close()
			r = zr
		case "deflate":
			// Servers disagree on whether deflate means zlib-wrapped or raw.
			if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
				defer zr.Close()
				r = zr
			} else {
				fr := flate.NewReader(bytes.NewReader(body))
				defer fr.Close()
				r = fr
			}
		case "br":
			r = brotli.NewReader(bytes.NewReader(body))
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, enc)
		}

		decoded, err := io.ReadAll(io.LimitReader(r, limit))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", enc, err)
		}
		body = decoded
	}
	return body, nil
}
