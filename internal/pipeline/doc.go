// Package pipeline drives a scan over an article ID range.
//
// A Scheduler splits the range into batches and processes them strictly in
// order. Inside a batch an errgroup bounds the number of concurrent probes.
// Records that pass the category filter are accumulated and flushed to a
// store.Sink whenever enough have piled up, and once more when the scan
// ends or is interrupted.
//
// Between batches the scheduler pauses for a random 2-5 seconds and, every
// fifteenth batch, asks for a fresh egress identity even without a block.
package pipeline
