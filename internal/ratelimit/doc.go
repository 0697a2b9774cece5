// Package ratelimit implements per-caller token buckets for gateway
// operations.
//
// Buckets are keyed by (callerID, operation class), created lazily at full
// capacity, refilled with floor(elapsed * rate) tokens on access, and purged
// after an idle window. The clock is injectable so tests simulate time
// passage deterministically.
//
// The outer HTTP layer separately applies per-IP limiting via
// golang.org/x/time/rate; this package is the core per-caller budget that
// survives across transport concerns.
package ratelimit
