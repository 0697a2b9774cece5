package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheenhq/workspace-gateway/internal/access"
	"github.com/sheenhq/workspace-gateway/internal/guard"
	"github.com/sheenhq/workspace-gateway/internal/probe"
	"github.com/sheenhq/workspace-gateway/internal/ratelimit"
)

func newTestRouter(t *testing.T, capacity int) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	workspaces := t.TempDir()
	root := filepath.Join(workspaces, "proj-1")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.ts"), []byte("export {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("SECRET=1\n"), 0o644))

	limiter := ratelimit.New(ratelimit.Config{Capacity: capacity, RefillPerSecond: 0.001})
	service := access.NewService(
		guard.New(nil, nil), probe.New(), limiter, nil,
		access.Config{MaxFileSize: 1 << 20}, nil,
	)

	h := NewHandlers(service, limiter, workspaces, nil)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/workspace/:project/file", h.ReadFile)
	r.GET("/workspace/:project/dir", h.ListDirectory)
	r.GET("/admin/rate-limits/:caller", h.RateLimitSnapshot)
	r.DELETE("/admin/rate-limits/:caller", h.RateLimitReset)
	return r, root
}

func doGet(r *gin.Engine, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// TestReadFileEndpoint tests the read route with conditional revalidation.
func TestReadFileEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, 1000)

	w := doGet(r, "/workspace/proj-1/file?path=src/app.ts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	assert.NotEmpty(t, etag)
	assert.NotEmpty(t, w.Header().Get("Last-Modified"))
	assert.Equal(t, "private, no-cache", w.Header().Get("Cache-Control"))

	var body struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "export {}\n", body.Content)
	assert.Equal(t, "utf-8", body.Encoding)

	w = doGet(r, "/workspace/proj-1/file?path=src/app.ts", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

// TestReadFileStatuses tests error-kind to status mapping.
func TestReadFileStatuses(t *testing.T) {
	r, _ := newTestRouter(t, 1000)

	// Blocked pattern: forbidden, generic body.
	w := doGet(r, "/workspace/proj-1/file?path=.env", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "pattern")

	// Traversal: also forbidden.
	w = doGet(r, "/workspace/proj-1/file?path=src/../../../etc/passwd", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Absent file.
	w = doGet(r, "/workspace/proj-1/file?path=src/missing.ts", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Absent project: root does not resolve, no artifact configured.
	w = doGet(r, "/workspace/no-such-project/file?path=x", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestRateLimitedStatus tests 429 with a Retry-After hint.
func TestRateLimitedStatus(t *testing.T) {
	r, _ := newTestRouter(t, 3)

	w := doGet(r, "/workspace/proj-1/file?path=src/app.ts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doGet(r, "/workspace/proj-1/file?path=src/app.ts", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

// TestListDirectoryEndpoint tests the listing route.
func TestListDirectoryEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, 1000)

	w := doGet(r, "/workspace/proj-1/dir?path=.", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Files         []struct{ Name string `json:"name"` } `json:"files"`
		FilteredCount int                                   `json:"filtered_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Files, 1)
	assert.Equal(t, "src", body.Files[0].Name)
	assert.Equal(t, 1, body.FilteredCount)
}

// TestAdminRateLimits tests snapshot and reset routes. Callers identified by
// header share buckets regardless of client IP.
func TestAdminRateLimits(t *testing.T) {
	r, _ := newTestRouter(t, 1000)

	doGet(r, "/workspace/proj-1/file?path=src/app.ts", map[string]string{"x-caller-id": "advisor-7"})

	w := doGet(r, "/admin/rate-limits/advisor-7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap struct {
		Buckets map[string]float64 `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 997.0, snap.Buckets["file_read"])

	req := httptest.NewRequest(http.MethodDelete, "/admin/rate-limits/advisor-7", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = doGet(r, "/admin/rate-limits/advisor-7", nil)
	var after struct {
		Buckets map[string]float64 `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Empty(t, after.Buckets)
}

// TestInvalidIdentifiers tests early rejection of malformed params.
func TestInvalidIdentifiers(t *testing.T) {
	r, _ := newTestRouter(t, 1000)

	w := doGet(r, "/workspace/bad%20project/file?path=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGet(r, "/workspace/proj-1/file?path=x&build=not%20ok", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestHealth tests the liveness route.
func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, 1000)
	w := doGet(r, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
