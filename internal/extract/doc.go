// Package extract turns protext.cz article pages into records.
//
// Pages are decoded to UTF-8 first, then each field is read by a short list
// of strategies tried in order. Body text is cleaned of markup and
// whitespace noise and must reach MinContentRunes characters to count.
package extract
