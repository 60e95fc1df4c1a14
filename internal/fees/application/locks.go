package application

import (
	"sync"

	fees "schoolfees-cloud/internal/fees/domain"
)

// feeLocks serializes ledger mutations per fee id. Two concurrent payment
// events against the same fee must never interleave.
type feeLocks struct {
	mu    sync.Mutex
	locks map[fees.FeeID]*sync.Mutex
}

func newFeeLocks() *feeLocks {
	return &feeLocks{locks: make(map[fees.FeeID]*sync.Mutex)}
}

// acquire locks the mutex for a fee id and returns its unlock func.
func (l *feeLocks) acquire(id fees.FeeID) func() {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[id] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
