package guard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.ts"), []byte("export {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# hi\n"), 0o644))
	return root
}

// TestValidateAllowsContainedPaths tests that ordinary paths inside the root pass.
func TestValidateAllowsContainedPaths(t *testing.T) {
	g := New(nil, nil)
	root := newRoot(t)

	for _, p := range []string{"src/app.ts", "README.md", "src", "."} {
		res := g.Validate(root, p)
		assert.True(t, res.Allowed, "path %q should be allowed: %s", p, res.Reason)
		assert.NotEmpty(t, res.CanonicalPath)
	}
}

// TestValidateDeniesTraversal tests that ../ sequences never escape the root.
func TestValidateDeniesTraversal(t *testing.T) {
	g := New(nil, nil)
	root := newRoot(t)

	for _, p := range []string{
		"../outside.txt",
		"src/../../etc/passwd",
		"../../../../etc/shadow",
		"..",
	} {
		res := g.Validate(root, p)
		assert.False(t, res.Allowed, "path %q should be denied", p)
	}
}

// TestValidateDeniesNullByte tests the null byte rejection.
func TestValidateDeniesNullByte(t *testing.T) {
	g := New(nil, nil)
	root := newRoot(t)

	res := g.Validate(root, "src/app\x00.ts")
	assert.False(t, res.Allowed)
}

// TestValidateDeniesSymlinkEscape tests that a symlink pointing outside the
// root is caught after resolution even though its raw path looks contained.
func TestValidateDeniesSymlinkEscape(t *testing.T) {
	g := New(nil, nil)
	root := newRoot(t)
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("s"), 0o644))
	require.NoError(t, os.Symlink(secret, filepath.Join(root, "src", "link.txt")))

	res := g.Validate(root, "src/link.txt")
	assert.False(t, res.Allowed)
}

// TestValidateAllowsInternalSymlink tests that symlinks staying inside the
// root resolve and pass.
func TestValidateAllowsInternalSymlink(t *testing.T) {
	g := New(nil, nil)
	root := newRoot(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "README.md"), filepath.Join(root, "link.md")))

	res := g.Validate(root, "link.md")
	assert.True(t, res.Allowed, res.Reason)
}

// TestValidateNonexistentTarget tests resolution through the deepest existing
// ancestor: contained-but-absent paths pass, escaping ones do not.
func TestValidateNonexistentTarget(t *testing.T) {
	g := New(nil, nil)
	root := newRoot(t)

	res := g.Validate(root, "src/new-dir/new-file.ts")
	assert.True(t, res.Allowed, res.Reason)

	res = g.Validate(root, "src/new-dir/../../../evil")
	assert.False(t, res.Allowed)
}

// TestValidateUnresolvableRoot tests fail-closed behavior for a missing root.
func TestValidateUnresolvableRoot(t *testing.T) {
	g := New(nil, nil)
	res := g.Validate(filepath.Join(t.TempDir(), "nope"), "anything")
	assert.False(t, res.Allowed)
}

// TestValidateBlockedPatterns tests the default blocked globs.
func TestValidateBlockedPatterns(t *testing.T) {
	g := New(nil, nil)
	root := newRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("KEY=1"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "node_modules", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "node_modules", "pkg", "index.js"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "server.key"), []byte(""), 0o644))

	for _, p := range []string{".env", "src/node_modules", "src/node_modules/pkg/index.js", "server.key"} {
		res := g.Validate(root, p)
		assert.False(t, res.Allowed, "path %q should be blocked", p)
		assert.Contains(t, res.Reason, "blocked by pattern")
	}

	res := g.Validate(root, "src/app.ts")
	assert.True(t, res.Allowed, res.Reason)
}

// TestValidateCustomPolicy tests custom blocked and allowed lists together.
func TestValidateCustomPolicy(t *testing.T) {
	g := New([]string{"**/*.secret"}, []string{"src/**", "README.md"})
	root := newRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "x.secret"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte(""), 0o644))

	assert.True(t, g.Validate(root, "src/app.ts").Allowed)
	assert.True(t, g.Validate(root, "README.md").Allowed)
	// Block list wins over allow list.
	assert.False(t, g.Validate(root, "src/x.secret").Allowed)
	// Not on the allow list.
	assert.False(t, g.Validate(root, "notes.txt").Allowed)
}

// TestValidateIdempotent tests that validating a returned canonical path
// yields the same canonical path.
func TestValidateIdempotent(t *testing.T) {
	g := New(nil, nil)
	root := newRoot(t)

	first := g.Validate(root, "src/app.ts")
	require.True(t, first.Allowed)

	canonRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	relFromRoot, err := filepath.Rel(canonRoot, first.CanonicalPath)
	require.NoError(t, err)

	second := g.Validate(root, relFromRoot)
	require.True(t, second.Allowed)
	assert.Equal(t, first.CanonicalPath, second.CanonicalPath)
}

// TestWithinBase tests the separator-bounded prefix rule.
func TestWithinBase(t *testing.T) {
	assert.True(t, WithinBase("/a/b", "/a/b"))
	assert.True(t, WithinBase("/a/b", "/a/b/c"))
	assert.False(t, WithinBase("/a/b", "/a/bc"))
	assert.False(t, WithinBase("/a/b", "/a"))
	assert.False(t, WithinBase("/a/b", "/other"))
}
