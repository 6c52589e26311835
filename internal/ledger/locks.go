package ledger

import (
	"sort"
	"sync"
)

// accountLocks serializes ledger mutations per account. The engine's
// read-modify-write of balances and the invalidate-then-replay of history are
// not atomic against interleaved writers, so at most one mutation may be in
// flight per account. Locks are acquired in sorted ID order to avoid
// deadlocks when an update touches two accounts.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the given account IDs (deduplicated, sorted) and returns a
// release function that unlocks them in reverse order.
func (l *accountLocks) acquire(ids ...string) func() {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)

	acquired := make([]*sync.Mutex, 0, len(unique))
	for _, id := range unique {
		l.mu.Lock()
		m, ok := l.locks[id]
		if !ok {
			m = &sync.Mutex{}
			l.locks[id] = m
		}
		l.mu.Unlock()

		m.Lock()
		acquired = append(acquired, m)
	}

	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}
