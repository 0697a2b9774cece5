package access

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheenhq/workspace-gateway/internal/artifact"
	"github.com/sheenhq/workspace-gateway/internal/guard"
	"github.com/sheenhq/workspace-gateway/internal/probe"
	"github.com/sheenhq/workspace-gateway/internal/ratelimit"
	"github.com/sheenhq/workspace-gateway/internal/shared/types"
)

type stubResolver struct {
	ref *artifact.ObjectReference
}

func (r *stubResolver) Resolve(_ context.Context, _ string) (*artifact.ObjectReference, error) {
	return r.ref, nil
}

type stubFetcher struct {
	archive []byte
}

func (f *stubFetcher) Fetch(_ context.Context, _ artifact.ObjectReference, destPath string) error {
	return os.WriteFile(destPath, f.archive, 0o600)
}

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		zf, err := w.Create(name)
		require.NoError(t, err)
		_, err = zf.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.ts"), []byte("export const x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# project\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("SECRET=1\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755))
	return root
}

func newTestService(t *testing.T, withArtifacts bool) *Service {
	t.Helper()
	var cache *artifact.Cache
	if withArtifacts {
		resolver := &stubResolver{ref: &artifact.ObjectReference{
			StorageKey:     "builds/b1.zip",
			OwnerProjectID: "proj-1",
			OwnerUserID:    "alice",
		}}
		fetcher := &stubFetcher{archive: buildZip(t, map[string]string{
			"index.html":     "<html></html>",
			"assets/app.js":  "console.log(1)\n",
			"assets/app.css": "body {}\n",
		})}
		cache = artifact.NewCache(resolver, fetcher, artifact.NewTreeExtractor(artifact.ExtractLimits{}), artifact.Config{
			ScratchDir:        t.TempDir(),
			ExtractionTimeout: 5 * time.Second,
			CacheTTL:          time.Minute,
		}, nil)
	}
	return NewService(
		guard.New(nil, nil),
		probe.New(),
		ratelimit.New(ratelimit.Config{Capacity: 1000, RefillPerSecond: 100}),
		cache,
		Config{MaxFileSize: 1 << 20},
		nil,
	)
}

// TestReadFile tests the primary-tree read path with conditional revalidation.
func TestReadFile(t *testing.T) {
	s := newTestService(t, false)
	root := newWorkspace(t)
	req := ReadRequest{ProjectRoot: root, Path: "src/app.ts", CallerID: "alice", ProjectID: "proj-1"}

	content, err := s.ReadFile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "export const x = 1\n", content.Content)
	assert.Equal(t, types.EncodingUTF8, content.Encoding)
	assert.NotEmpty(t, content.ETag)
	assert.False(t, content.Immutable)
	assert.False(t, content.NotModified)
	assert.False(t, content.Metadata.IsBinary)

	// Same validator: short-circuit without content.
	req.IfNoneMatch = content.ETag
	second, err := s.ReadFile(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.NotModified)
	assert.Empty(t, second.Content)
	assert.Equal(t, content.ETag, second.ETag)

	// Stale validator: full content again.
	req.IfNoneMatch = `"0000000000000000"`
	third, err := s.ReadFile(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, third.NotModified)
	assert.Equal(t, content.Content, third.Content)
}

// TestReadFileIfModifiedSince tests time-based revalidation when no etag is
// presented.
func TestReadFileIfModifiedSince(t *testing.T) {
	s := newTestService(t, false)
	root := newWorkspace(t)

	first, err := s.ReadFile(context.Background(), ReadRequest{
		ProjectRoot: root, Path: "README.md", CallerID: "alice",
	})
	require.NoError(t, err)

	got, err := s.ReadFile(context.Background(), ReadRequest{
		ProjectRoot: root, Path: "README.md", CallerID: "alice",
		IfModifiedSince: first.Metadata.Modified.Add(time.Second),
	})
	require.NoError(t, err)
	assert.True(t, got.NotModified)

	got, err = s.ReadFile(context.Background(), ReadRequest{
		ProjectRoot: root, Path: "README.md", CallerID: "alice",
		IfModifiedSince: first.Metadata.Modified.Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, got.NotModified)
}

// TestReadFileDenied tests traversal and pattern denials.
func TestReadFileDenied(t *testing.T) {
	s := newTestService(t, false)
	root := newWorkspace(t)

	for _, p := range []string{"src/../../etc/passwd", ".env", "node_modules/pkg"} {
		_, err := s.ReadFile(context.Background(), ReadRequest{
			ProjectRoot: root, Path: p, CallerID: "alice",
		})
		require.Error(t, err, "path %q", p)
		assert.Equal(t, types.KindAccessDenied, types.Kind(err), "path %q", p)
	}
}

// TestReadFileDirectory tests that directories are not readable as files.
func TestReadFileDirectory(t *testing.T) {
	s := newTestService(t, false)
	root := newWorkspace(t)

	_, err := s.ReadFile(context.Background(), ReadRequest{ProjectRoot: root, Path: "src", CallerID: "alice"})
	require.Error(t, err)
	assert.Equal(t, types.KindNotFound, types.Kind(err))
}

// TestReadFileTooLarge tests the pre-read size cap.
func TestReadFileTooLarge(t *testing.T) {
	s := NewService(guard.New(nil, nil), probe.New(),
		ratelimit.New(ratelimit.Config{Capacity: 10, RefillPerSecond: 1}),
		nil, Config{MaxFileSize: 5}, nil)
	root := newWorkspace(t)

	_, err := s.ReadFile(context.Background(), ReadRequest{ProjectRoot: root, Path: "README.md", CallerID: "alice"})
	require.Error(t, err)
	assert.Equal(t, types.KindTooLarge, types.Kind(err))
}

// TestReadFileRateLimited tests budget exhaustion surfaces the right kind.
func TestReadFileRateLimited(t *testing.T) {
	s := NewService(guard.New(nil, nil), probe.New(),
		ratelimit.New(ratelimit.Config{Capacity: 3, RefillPerSecond: 0.001}),
		nil, Config{MaxFileSize: 1 << 20}, nil)
	root := newWorkspace(t)
	req := ReadRequest{ProjectRoot: root, Path: "README.md", CallerID: "alice"}

	_, err := s.ReadFile(context.Background(), req)
	require.NoError(t, err)

	_, err = s.ReadFile(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, types.KindRateLimited, types.Kind(err))

	// Another caller is unaffected.
	req.CallerID = "bob"
	_, err = s.ReadFile(context.Background(), req)
	assert.NoError(t, err)
}

// TestListDirectory tests listing with per-entry filtering.
func TestListDirectory(t *testing.T) {
	s := newTestService(t, false)
	root := newWorkspace(t)

	listing, err := s.ListDirectory(context.Background(), ListRequest{
		ProjectRoot: root, Path: ".", CallerID: "alice",
	})
	require.NoError(t, err)

	names := make([]string, 0, len(listing.Files))
	for _, f := range listing.Files {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "src")
	assert.Contains(t, names, "README.md")
	assert.NotContains(t, names, ".env")
	assert.NotContains(t, names, "node_modules")
	// .env and node_modules were dropped without being named.
	assert.Equal(t, 2, listing.FilteredCount)
	assert.Equal(t, len(listing.Files), listing.TotalCount)
	assert.False(t, listing.FromArtifact)
}

// TestListDirectoryNotDir tests listing a file path.
func TestListDirectoryNotDir(t *testing.T) {
	s := newTestService(t, false)
	root := newWorkspace(t)

	_, err := s.ListDirectory(context.Background(), ListRequest{
		ProjectRoot: root, Path: "README.md", CallerID: "alice",
	})
	require.Error(t, err)
	assert.Equal(t, types.KindNotFound, types.Kind(err))
}

// TestReadFallsBackToArtifact tests that a file absent from the primary tree
// is served from the published build, immutable with a content validator.
func TestReadFallsBackToArtifact(t *testing.T) {
	s := newTestService(t, true)
	root := newWorkspace(t)
	req := ReadRequest{
		ProjectRoot: root, Path: "assets/app.js",
		CallerID: "alice", ProjectID: "proj-1", BuildID: "b1",
	}

	content, err := s.ReadFile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)\n", content.Content)
	assert.True(t, content.Immutable)
	assert.NotEmpty(t, content.ETag)

	req.IfNoneMatch = content.ETag
	second, err := s.ReadFile(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.NotModified)
	assert.True(t, second.Immutable)
}

// TestReadMissingRootUsesArtifact tests that a vanished project root still
// serves published builds.
func TestReadMissingRootUsesArtifact(t *testing.T) {
	s := newTestService(t, true)
	gone := filepath.Join(t.TempDir(), "gone")

	content, err := s.ReadFile(context.Background(), ReadRequest{
		ProjectRoot: gone, Path: "index.html",
		CallerID: "alice", ProjectID: "proj-1", BuildID: "b1",
	})
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", content.Content)
	assert.True(t, content.Immutable)
}

// TestReadMissingNoBuild tests that without a build there is no fallback.
func TestReadMissingNoBuild(t *testing.T) {
	s := newTestService(t, true)
	root := newWorkspace(t)

	_, err := s.ReadFile(context.Background(), ReadRequest{
		ProjectRoot: root, Path: "does/not/exist.txt", CallerID: "alice", ProjectID: "proj-1",
	})
	require.Error(t, err)
	assert.Equal(t, types.KindNotFound, types.Kind(err))
}

// TestListFromArtifact tests listing the extracted tree, including
// synthesized directory entries.
func TestListFromArtifact(t *testing.T) {
	s := newTestService(t, true)
	gone := filepath.Join(t.TempDir(), "gone")

	listing, err := s.ListDirectory(context.Background(), ListRequest{
		ProjectRoot: gone, Path: "", CallerID: "alice", ProjectID: "proj-1", BuildID: "b1",
	})
	require.NoError(t, err)
	assert.True(t, listing.FromArtifact)
	require.Len(t, listing.Files, 2)
	assert.Equal(t, "assets", listing.Files[0].Name)
	assert.True(t, listing.Files[0].IsDir)
	assert.Equal(t, "index.html", listing.Files[1].Name)

	nested, err := s.ListDirectory(context.Background(), ListRequest{
		ProjectRoot: gone, Path: "assets", CallerID: "alice", ProjectID: "proj-1", BuildID: "b1",
	})
	require.NoError(t, err)
	require.Len(t, nested.Files, 2)
	assert.Equal(t, "app.css", nested.Files[0].Name)
	assert.Equal(t, "app.js", nested.Files[1].Name)

	_, err = s.ListDirectory(context.Background(), ListRequest{
		ProjectRoot: gone, Path: "missing", CallerID: "alice", ProjectID: "proj-1", BuildID: "b1",
	})
	require.Error(t, err)
	assert.Equal(t, types.KindNotFound, types.Kind(err))
}
