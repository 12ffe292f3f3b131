// Package model defines the data shared by the scanner's components.
//
//   - Record: one harvested article, serialized to the output collection
//   - IDRange: the span of numeric IDs a scan probes, split into batches
//   - CategoryFilter: optional set of categories a scan keeps
//
// The types live in their own package so that crawler, pipeline, store and
// report can all use them without import cycles.
package model
