package access

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// StatETag derives a validator from path, size and mtime. Any change to
// size or mtime produces a different tag; content is never read.
func StatETag(path string, size int64, mtime time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", path, size, mtime.UnixNano())))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// ContentETag derives a validator from file content, for immutable
// artifact-sourced files where aggressive caching is safe.
func ContentETag(data []byte) string {
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// etagMatches reports whether an If-None-Match header value matches the
// given tag. Handles the wildcard and comma-separated candidate lists.
func etagMatches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}

// notModifiedSince reports whether mtime is at or before the caller's
// If-Modified-Since timestamp. HTTP dates have second precision, so mtime is
// truncated before comparing.
func notModifiedSince(ifModifiedSince, mtime time.Time) bool {
	if ifModifiedSince.IsZero() {
		return false
	}
	return !mtime.Truncate(time.Second).After(ifModifiedSince)
}
