// Package store persists scraped records as a deduplicated JSON array.
//
// Every flush rewrites the whole file: the existing array is loaded, new
// records whose id is not yet present are appended, and the result is
// written to a temporary file that atomically replaces the original. A
// crash at any point leaves either the old or the new file, never a torn
// one. Flushing the same records twice stores them once.
//
// Output is indented with two spaces and keeps non-ASCII text and HTML
// characters unescaped, so Czech article text stays readable.
package store
