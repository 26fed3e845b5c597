package x402

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// settlementKey derives a stable idempotency key for a payment. The
// payload body contains the authorization nonce and signature, so two
// distinct payment attempts never collide.
func settlementKey(payload PaymentPayload) (string, error) {
	data, err := json.Marshal(payload.Payload)
	if err != nil {
		return "", fmt.Errorf("hashing payment for settlement: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// settlementCache makes settlement idempotent: a payment that already
// settled returns its recorded result, and concurrent settles of the
// same payment wait for the first one instead of double-submitting.
type settlementCache struct {
	mu       sync.Mutex
	results  map[string]*SettleResponse
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
}

func newSettlementCache(ttl time.Duration) *settlementCache {
	return &settlementCache{
		results:  make(map[string]*SettleResponse),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
	}
}

// beginOrWait returns a recorded result if one exists, otherwise claims
// the key for this caller (returning ok false) or, if another caller
// holds it, waits for that settlement to conclude and reports its
// result. A cancelled context stops the wait; the caller must then
// check ctx.Err.
func (c *settlementCache) beginOrWait(ctx context.Context, key string) (*SettleResponse, bool) {
	for {
		c.mu.Lock()
		if resp, ok := c.results[key]; ok && time.Now().Before(c.expiry[key]) {
			c.mu.Unlock()
			return resp, true
		}
		waiter, busy := c.inFlight[key]
		if !busy {
			c.inFlight[key] = make(chan struct{})
			c.mu.Unlock()
			return nil, false
		}
		c.mu.Unlock()

		select {
		case <-waiter:
			// The holder finished; loop to read its result or claim.
		case <-ctx.Done():
			return nil, false
		}
	}
}

// finish records a successful settlement and releases waiters.
func (c *settlementCache) finish(key string, resp *SettleResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[key] = resp
	c.expiry[key] = time.Now().Add(c.ttl)
	if ch, ok := c.inFlight[key]; ok {
		close(ch)
		delete(c.inFlight, key)
	}
}

// abandon releases the key without recording a result, letting a later
// retry attempt settlement again.
func (c *settlementCache) abandon(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.inFlight[key]; ok {
		close(ch)
		delete(c.inFlight, key)
	}
}
