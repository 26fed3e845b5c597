// Package replay guards against reuse of payment authorization nonces.
//
// A nonce may transition from unseen to consumed exactly once, no matter
// how many verifications race on it. The in-memory ledger covers an
// in-process facilitator; networked facilitators back the same interface
// with shared storage.
package replay

import "sync"

// Ledger records consumed nonces.
type Ledger interface {
	// CheckAndConsume atomically marks nonce as consumed. It returns true
	// if this call performed the transition, false if the nonce was
	// already consumed.
	CheckAndConsume(nonce string) bool
}

// MemoryLedger is a process-wide in-memory Ledger.
type MemoryLedger struct {
	mu   sync.Mutex
	used map[string]struct{}
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{used: make(map[string]struct{})}
}

func (l *MemoryLedger) CheckAndConsume(nonce string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.used[nonce]; ok {
		return false
	}
	l.used[nonce] = struct{}{}
	return true
}

// Seen reports whether nonce has been consumed, without consuming it.
func (l *MemoryLedger) Seen(nonce string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.used[nonce]
	return ok
}
