package parser

import (
	"sync"
	"time"

	"github.com/rawblock/txscan-engine/internal/model"
)

// fingerprintCache is the parser's own short-TTL decode cache,
// independent of the pipeline-wide cache tier (spec §4.1: "Has its own
// fingerprint-addressed cache"). Lazily swept on get/put.
type fingerprintCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	tx        *model.ParsedTransaction
	expiresAt time.Time
}

func newFingerprintCache(ttl time.Duration) *fingerprintCache {
	return &fingerprintCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *fingerprintCache) get(fingerprint string) (*model.ParsedTransaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, fingerprint)
		return nil, false
	}
	return e.tx, true
}

func (c *fingerprintCache) put(fingerprint string, tx *model.ParsedTransaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) > 4096 {
		c.evictExpiredLocked()
	}
	c.entries[fingerprint] = cacheEntry{tx: tx, expiresAt: time.Now().Add(c.ttl)}
}

func (c *fingerprintCache) evictExpiredLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
