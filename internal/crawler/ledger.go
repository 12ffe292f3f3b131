package crawler

import "sync"

// Claimer admits each ID at most once.
type Claimer interface {
	TryClaim(id int) bool
}

// Ledger is the run-scoped set of IDs some worker has already claimed.
// It lives only as long as one scan and is never persisted.
type Ledger struct {
	mutex   sync.Mutex
	claimed map[int]struct{}
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{claimed: make(map[int]struct{})}
}

// TryClaim marks id as claimed and reports whether the caller won it.
// Exactly one of any number of concurrent callers for the same id gets true.
func (l *Ledger) TryClaim(id int) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if _, ok := l.claimed[id]; ok {
		return false
	}
	l.claimed[id] = struct{}{}
	return true
}

// Seed pre-claims ids so that the scan skips them.
func (l *Ledger) Seed(ids []int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	for _, id := range ids {
		l.claimed[id] = struct{}{}
	}
}

// Len returns the number of claimed IDs.
func (l *Ledger) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.claimed)
}
