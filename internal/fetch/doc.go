// Package fetch retrieves pages while surviving rate limits and blocks.
//
// Every call runs a small state machine. An attempt is classified as success
// (status below 400), rate limited (429), forbidden (403), unavailable (503)
// or failure (transport error or any other error status). Policy.Next turns
// that outcome into a wait, an optional egress rotation and either another
// attempt or a terminal state. Exhausting the budget yields ErrExhausted,
// which callers read as "no result".
//
// Each attempt carries a freshly drawn browser signature, a short random
// pause and a randomized timeout, so that consecutive requests do not share
// an obvious rhythm.
package fetch
