package fetch

import "errors"

var (
	// ErrExhausted is returned when every attempt failed. It is the "no
	// result" signal: callers treat the ID as absent.
	ErrExhausted = errors.New("fetch attempts exhausted")

	// ErrUnsupportedEncoding is returned for a Content-Encoding the client
	// cannot decode.
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
)
