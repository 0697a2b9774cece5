package guard

import (
	"path"
	"strings"
)

// SanitizeSubpath normalizes a user-supplied sub-path for reads inside an
// already-extracted artifact tree. Unlike Validate, it never touches the
// filesystem: empty, "." and ".." segments are removed outright rather than
// resolved, backslashes are normalized to slashes, and null bytes reject the
// whole path. A leading dot-segment rejects the path (dotfiles at the top of
// an artifact are never served).
//
// Sanitization is necessary but not sufficient: after joining the returned
// path onto a base directory, callers must still verify containment with
// WithinBase.
func SanitizeSubpath(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	if strings.ContainsRune(p, 0) {
		return "", false
	}

	normalized := strings.ReplaceAll(p, "\\", "/")

	var segments []string
	for _, seg := range strings.Split(normalized, "/") {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return "", false
	}
	if strings.HasPrefix(segments[0], ".") {
		return "", false
	}

	clean := path.Join(segments...)
	// Join cannot reintroduce traversal from filtered segments, but the
	// reconstruction is re-checked anyway.
	if clean == "" || containsTraversalSegment(clean) {
		return "", false
	}
	return clean, true
}

// containsTraversalSegment reports whether any slash-bounded segment of p is
// exactly "..". Names merely containing dots (e.g. "a..b") are fine.
func containsTraversalSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
