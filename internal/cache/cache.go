package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// Cache is the namespace-keyed cache tier: an L1 in-process map in
// front of an optional Redis L2, the L2 leg wrapped in its own circuit
// breaker (independent of the admission layer's).
type Cache struct {
	l1         *l1Store
	redis      *redis.Client
	breaker    *gobreaker.CircuitBreaker
	namespaces map[string]Namespace
}

// BreakerConfig configures the cache tier's circuit breaker (spec
// §4.8: five consecutive failures opens it for 60s).
type BreakerConfig struct {
	FailureThreshold uint32
	ResetTimeout     time.Duration
}

// New builds a Cache. redisClient may be nil, in which case the cache
// degrades to L1-only (every L2 operation is skipped, not failed).
func New(redisClient *redis.Client, namespaces map[string]Namespace, breakerCfg BreakerConfig) *Cache {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cache-l2",
		MaxRequests: 1,
		Timeout:     breakerCfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerCfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("cache: breaker %s transitioned %s -> %s", name, from, to)
		},
	})

	return &Cache{
		l1:         newL1Store(),
		redis:      redisClient,
		breaker:    breaker,
		namespaces: namespaces,
	}
}

// Get looks up identifier in namespace, consulting L1 first, then L2
// through the breaker. A miss, a timeout, or an open breaker all
// return (nil, false) — never an error upward (spec §4.8).
func (c *Cache) Get(ctx context.Context, namespace, identifier string) ([]byte, bool) {
	ns, ok := c.namespaces[namespace]
	if !ok {
		return nil, false
	}
	key := ns.BuildKey(identifier)

	if v, ok := c.l1.get(key); ok {
		return v, true
	}

	if c.redis == nil {
		return nil, false
	}

	getCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	result, err := c.breaker.Execute(func() (any, error) {
		return c.redis.Get(getCtx, key).Bytes()
	})
	if err != nil {
		return nil, false
	}

	v := result.([]byte)
	c.l1.set(key, v, ns.TTL)
	return v, true
}

// Set writes identifier's value into both tiers. Always best-effort
// and fire-and-forget: callers should not block on or check its
// outcome (spec §4.8).
func (c *Cache) Set(ctx context.Context, namespace, identifier string, value []byte) {
	ns, ok := c.namespaces[namespace]
	if !ok {
		return
	}
	key := ns.BuildKey(identifier)
	c.l1.set(key, value, ns.TTL)

	if c.redis == nil {
		return
	}

	go func() {
		setCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, _ = c.breaker.Execute(func() (any, error) {
			return nil, c.redis.Set(setCtx, key, value, ns.TTL).Err()
		})
	}()
}

// BreakerState reports the L2 breaker's current state as a string, for
// health/status reporting.
func (c *Cache) BreakerState() string {
	return c.breaker.State().String()
}

// Delete removes identifier from both tiers.
func (c *Cache) Delete(ctx context.Context, namespace, identifier string) {
	ns, ok := c.namespaces[namespace]
	if !ok {
		return
	}
	key := ns.BuildKey(identifier)
	c.l1.delete(key)

	if c.redis == nil {
		return
	}
	delCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, _ = c.breaker.Execute(func() (any, error) {
		return nil, c.redis.Del(delCtx, key).Err()
	})
}

// InvalidateByPattern clears every L1 entry whose key starts with
// namespace's prefix + pattern, and issues a best-effort Redis SCAN/DEL
// for the same prefix. Used by pattern catalogue reloads.
func (c *Cache) InvalidateByPattern(ctx context.Context, namespace, pattern string) {
	ns, ok := c.namespaces[namespace]
	if !ok {
		return
	}
	prefix := ns.KeyPrefix + pattern
	c.l1.deleteMatching(prefix)

	if c.redis == nil {
		return
	}
	go func() {
		scanCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		iter := c.redis.Scan(scanCtx, 0, prefix+"*", 0).Iterator()
		for iter.Next(scanCtx) {
			c.redis.Del(scanCtx, iter.Val())
		}
	}()
}
