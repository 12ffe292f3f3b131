package extract

import "errors"

var (
	// ErrIncomplete indicates a page without a usable title or body text.
	ErrIncomplete = errors.New("page has no title or content")
	// ErrParse indicates the HTML could not be parsed.
	ErrParse = errors.New("failed to parse HTML")
)
