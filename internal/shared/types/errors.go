package types

import "errors"

// Sentinel errors for the gateway's outcome taxonomy. Components wrap these
// with fmt.Errorf("...: %w", ...) so the internal detail stays in logs while
// the HTTP layer switches on Kind alone.
var (
	// ErrAccessDenied covers traversal attempts and blocked pattern
	// matches. Outward responses must not reveal whether the target exists.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound means the path or artifact does not exist after all
	// fallbacks. Artifact ownership mismatches wrap this too, so callers
	// cannot probe for other tenants' builds; the denial is logged.
	ErrNotFound = errors.New("not found")

	// ErrTooLarge means a file or archive exceeds a configured ceiling.
	// Reported before content is read into memory.
	ErrTooLarge = errors.New("too large")

	// ErrRateLimited means the caller's token bucket is exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrExtractionFailed means the archive was corrupt, the extractor
	// errored, or the extraction timed out. Transient; safe to retry.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrUpstreamUnavailable means the registry lookup or archive fetch
	// failed for infrastructural reasons. The object may still exist.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ErrorKind classifies a gateway error for outward mapping.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindAccessDenied
	KindNotFound
	KindTooLarge
	KindRateLimited
	KindExtractionFailed
	KindUpstreamUnavailable
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindAccessDenied:
		return "access_denied"
	case KindNotFound:
		return "not_found"
	case KindTooLarge:
		return "too_large"
	case KindRateLimited:
		return "rate_limited"
	case KindExtractionFailed:
		return "extraction_failed"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	default:
		return "internal"
	}
}

// Kind classifies err against the gateway taxonomy.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return KindAccessDenied
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTooLarge):
		return KindTooLarge
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrExtractionFailed):
		return KindExtractionFailed
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	default:
		return KindInternal
	}
}
