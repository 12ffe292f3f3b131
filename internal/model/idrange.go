package model

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

// Direction is the traversal order of an IDRange.
type Direction int

const (
	// NewestFirst walks from Max down to Min.
	NewestFirst Direction = iota
	// OldestFirst walks from Min up to Max.
	OldestFirst
)

// ErrUnknownDirection is returned by ParseDirection for unrecognized names.
var ErrUnknownDirection = errors.New("unknown direction: expected newest-first or oldest-first")

// String returns the flag spelling of the direction.
func (d Direction) String() string {
	switch d {
	case NewestFirst:
		return "newest-first"
	case OldestFirst:
		return "oldest-first"
	default:
		return "unknown"
	}
}

// ParseDirection parses the flag spelling of a direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "newest-first", "newest", "desc", "descending":
		return NewestFirst, nil
	case "oldest-first", "oldest", "asc", "ascending":
		return OldestFirst, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
	}
}

// IDRange is an inclusive span of article IDs sampled every Step.
//
// The members are Min, Min+Step, Min+2*Step, ... up to Max. A descending
// walk starts at Max and subtracts Step, so for Step > 1 the two directions
// may visit different IDs.
type IDRange struct {
	Min       int
	Max       int
	Step      int
	Direction Direction
}

// Len returns the number of IDs the range yields.
func (r IDRange) Len() int {
	if r.Step <= 0 || r.Min > r.Max {
		return 0
	}
	return (r.Max-r.Min)/r.Step + 1
}

// At returns the k-th ID in traversal order. k must be in [0, Len()).
func (r IDRange) At(k int) int {
	if r.Direction == OldestFirst {
		return r.Min + k*r.Step
	}
	return r.Max - k*r.Step
}

// NumBatches returns how many batches of at most size IDs the range splits into.
func (r IDRange) NumBatches(size int) int {
	if size <= 0 {
		return 0
	}
	n := r.Len()
	return (n + size - 1) / size
}

// Batch returns the i-th batch of at most size IDs, in traversal order.
func (r IDRange) Batch(i, size int) []int {
	n := r.Len()
	start := i * size
	if size <= 0 || i < 0 || start >= n {
		return nil
	}
	end := min(start+size, n)

	ids := make([]int, 0, end-start)
	for k := start; k < end; k++ {
		ids = append(ids, r.At(k))
	}
	return ids
}

// Batches yields consecutive batches of at most size IDs. Every ID of the
// range appears in exactly one batch.
func (r IDRange) Batches(size int) iter.Seq2[int, []int] {
	return func(yield func(int, []int) bool) {
		for i := range r.NumBatches(size) {
			if !yield(i, r.Batch(i, size)) {
				return
			}
		}
	}
}

// String formats the range for logs.
func (r IDRange) String() string {
	return fmt.Sprintf("[%d..%d step %d %s]", r.Min, r.Max, r.Step, r.Direction)
}
