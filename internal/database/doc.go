// Package database mirrors scraped records into SQL databases.
//
// The JSON file written by the store package stays the primary output. A
// mirror receives the same flushed batches and keeps an indexed copy that
// can be queried without loading the whole array:
//   - SQLiteMirror writes a single protext.db file (modernc.org/sqlite, no cgo)
//   - PostgresMirror writes through a pgx connection pool using batched inserts
//
// Both insert with ON CONFLICT DO NOTHING, so re-flushing a record is a no-op.
package database
