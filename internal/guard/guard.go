package guard

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Result is the outcome of validating one requested path.
type Result struct {
	Allowed       bool   `json:"allowed"`
	Reason        string `json:"reason,omitempty"`
	CanonicalPath string `json:"canonical_path,omitempty"`
}

// Guard validates requested paths against a project root boundary and
// ordered blocked/allowed glob pattern lists. It holds no per-call state and
// is safe for concurrent use.
type Guard struct {
	blocked []string
	allowed []string
}

// New creates a guard with the given pattern lists. Empty lists fall back to
// the compiled-in defaults (blocked) and allow-everything (allowed).
func New(blocked, allowed []string) *Guard {
	if len(blocked) == 0 {
		blocked = DefaultBlockedPatterns()
	}
	return &Guard{blocked: blocked, allowed: allowed}
}

// deny builds a rejected result. The reason is for internal logging; the
// facade reports only the generic outcome outward.
func deny(format string, args ...interface{}) Result {
	return Result{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Validate canonicalizes requestedPath against projectRoot and applies the
// pattern lists. All boundary checks run on canonical (symlink-resolved)
// paths; raw string comparison is never trusted.
func (g *Guard) Validate(projectRoot, requestedPath string) Result {
	if strings.ContainsRune(requestedPath, 0) {
		return deny("path contains null byte")
	}

	canonRoot, err := filepath.EvalSymlinks(filepath.Clean(projectRoot))
	if err != nil {
		// Fail closed: an unresolvable root has no boundary to enforce.
		return deny("project root not resolvable: %v", err)
	}

	canonical, err := resolveTarget(canonRoot, requestedPath)
	if err != nil {
		return deny("path not resolvable: %v", err)
	}

	if !WithinBase(canonRoot, canonical) {
		return deny("path escapes project root")
	}

	rel, err := filepath.Rel(canonRoot, canonical)
	if err != nil {
		return deny("relative path not computable: %v", err)
	}
	// The root itself is always listable.
	if rel == "." {
		return Result{Allowed: true, CanonicalPath: canonical}
	}

	relSlash := filepath.ToSlash(rel)
	for _, pattern := range g.blocked {
		if ok, _ := doublestar.Match(pattern, relSlash); ok {
			return deny("blocked by pattern %q", pattern)
		}
	}

	if len(g.allowed) > 0 {
		matched := false
		for _, pattern := range g.allowed {
			if ok, _ := doublestar.Match(pattern, relSlash); ok {
				matched = true
				break
			}
		}
		if !matched {
			return deny("no allow pattern matches")
		}
	}

	return Result{Allowed: true, CanonicalPath: canonical}
}

// resolveTarget joins requestedPath onto the canonical root and resolves
// symlinks. A target that does not exist yet is resolved through its deepest
// existing ancestor so listings of new paths remain checkable; anything that
// cannot be anchored to an existing ancestor is an error (callers deny).
func resolveTarget(canonRoot, requestedPath string) (string, error) {
	joined := filepath.Join(canonRoot, requestedPath)
	if resolved, err := filepath.EvalSymlinks(joined); err == nil {
		return resolved, nil
	}

	dir := joined
	var remainder []string
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no resolvable ancestor for %s", joined)
		}
		remainder = append([]string{filepath.Base(dir)}, remainder...)
		dir = parent
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			parts := append([]string{resolved}, remainder...)
			return filepath.Join(parts...), nil
		}
	}
}

// WithinBase reports whether path equals base or is a separator-bounded
// descendant of it. Both arguments must already be canonical.
func WithinBase(base, path string) bool {
	base = filepath.Clean(base)
	path = filepath.Clean(path)
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(filepath.Separator))
}
