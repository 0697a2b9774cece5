// Package resilience provides a circuit breaker for calls to flaky
// upstreams.
//
// The gateway wraps build registry lookups in a breaker so that a dead
// registry fails fast instead of stacking retries behind every artifact
// request. Closed circuits pass calls through and count failures; too many
// consecutive failures open the circuit, which rejects immediately until a
// cooldown elapses; a half-open circuit admits a limited number of probes
// and closes again once they succeed.
package resilience
