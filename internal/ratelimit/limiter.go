package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// OperationClass distinguishes bucket costs per kind of access.
type OperationClass string

const (
	OpFileRead OperationClass = "file_read"
	OpDirList  OperationClass = "dir_list"
	OpMetadata OperationClass = "metadata"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed         bool    `json:"allowed"`
	TokensRemaining float64 `json:"tokens_remaining"`
}

// Config defines limiter behavior. Zero values fall back to defaults.
type Config struct {
	Capacity        int
	RefillPerSecond float64
	IdleTimeout     time.Duration
	Costs           map[OperationClass]float64
	// Now is the clock source; tests inject a fake to drive time.
	Now func() time.Time
}

// DefaultConfig returns production-ready limiter configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:        100,
		RefillPerSecond: 50,
		IdleTimeout:     time.Hour,
		Costs:           DefaultCosts(),
	}
}

// DefaultCosts returns the per-class token costs. Reading content costs more
// than listing, which costs more than metadata-only lookups.
func DefaultCosts() map[OperationClass]float64 {
	return map[OperationClass]float64{
		OpFileRead: 3,
		OpDirList:  2,
		OpMetadata: 1,
	}
}

type bucketKey struct {
	callerID string
	op       OperationClass
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
	lastSeen   time.Time
}

// Limiter implements per-caller, per-operation-class token buckets with lazy
// refill. It is a liveness safeguard, not a security boundary: exhaustion
// rejects, it never blocks, and one caller's bucket never affects another's.
type Limiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	cfg     Config
	now     func() time.Time
}

// New creates a limiter with the given configuration.
func New(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.RefillPerSecond <= 0 {
		cfg.RefillPerSecond = def.RefillPerSecond
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.Costs == nil {
		cfg.Costs = DefaultCosts()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		buckets: make(map[bucketKey]*bucket),
		cfg:     cfg,
		now:     now,
	}
}

// Check deducts the operation's cost from the caller's bucket if enough
// tokens remain. A rejected check deducts nothing.
func (l *Limiter) Check(callerID string, op OperationClass) Decision {
	cost, ok := l.cfg.Costs[op]
	if !ok {
		cost = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := bucketKey{callerID: callerID, op: op}
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     float64(l.cfg.Capacity),
			lastRefill: now,
		}
		l.buckets[key] = b
	} else {
		l.refill(b, now)
	}
	b.lastSeen = now

	if b.tokens < cost {
		return Decision{Allowed: false, TokensRemaining: b.tokens}
	}
	b.tokens -= cost
	return Decision{Allowed: true, TokensRemaining: b.tokens}
}

// refill adds floor(elapsed*rate) tokens capped at capacity. lastRefill only
// advances when whole tokens were actually added, so fractional progress is
// not lost across rapid checks.
func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	added := math.Floor(elapsed * l.cfg.RefillPerSecond)
	if added <= 0 {
		return
	}
	b.tokens = math.Min(b.tokens+added, float64(l.cfg.Capacity))
	b.lastRefill = now
}

// Snapshot returns the current token balance per operation class for one
// caller, refilled to the present moment. Missing classes mean the caller
// has not used them yet.
func (l *Limiter) Snapshot(callerID string) map[OperationClass]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	out := make(map[OperationClass]float64)
	for key, b := range l.buckets {
		if key.callerID != callerID {
			continue
		}
		l.refill(b, now)
		out[key.op] = b.tokens
	}
	return out
}

// Reset removes all buckets for one caller, returning them to full capacity
// on next use.
func (l *Limiter) Reset(callerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key := range l.buckets {
		if key.callerID == callerID {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Sweep purges buckets idle longer than the configured timeout and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.cfg.IdleTimeout {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Run sweeps on the given interval until ctx is cancelled. Tests call Sweep
// directly instead.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
