package http

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/sheenhq/workspace-gateway/internal/access"
	"github.com/sheenhq/workspace-gateway/internal/api/middleware"
	"github.com/sheenhq/workspace-gateway/internal/infrastructure/logging"
	"github.com/sheenhq/workspace-gateway/internal/ratelimit"
	"github.com/sheenhq/workspace-gateway/internal/shared/types"
	"github.com/sheenhq/workspace-gateway/internal/shared/utils"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	service        *access.Service
	limiter        *ratelimit.Limiter
	workspacesRoot string
	logger         *logging.Logger
}

// NewHandlers creates a new handler set.
func NewHandlers(service *access.Service, limiter *ratelimit.Limiter, workspacesRoot string, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		service:        service,
		limiter:        limiter,
		workspacesRoot: workspacesRoot,
		logger:         logger,
	}
}

// Health handles health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "workspace-gateway",
	})
}

// callerID extracts the caller identity, falling back to the client IP.
func callerID(c *gin.Context) string {
	if id := c.GetHeader(middleware.CallerHeader); id != "" {
		return id
	}
	return c.ClientIP()
}

// projectRoot maps a project identifier onto its primary storage directory.
func (h *Handlers) projectRoot(projectID string) string {
	return filepath.Join(h.workspacesRoot, projectID)
}

// validateParams rejects malformed identifiers before any filesystem or
// upstream work happens.
func validateParams(c *gin.Context, projectID, buildID, path string) bool {
	if err := utils.ValidateIdentifier("project", projectID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return false
	}
	if buildID != "" {
		if err := utils.ValidateIdentifier("build", buildID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid build id"})
			return false
		}
	}
	if err := utils.ValidateSubpathLength(path); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
		return false
	}
	return true
}

// ReadFile handles GET /workspace/:project/file.
func (h *Handlers) ReadFile(c *gin.Context) {
	projectID := c.Param("project")
	if !validateParams(c, projectID, c.Query("build"), c.Query("path")) {
		return
	}
	req := access.ReadRequest{
		ProjectRoot: h.projectRoot(projectID),
		Path:        c.Query("path"),
		CallerID:    callerID(c),
		ProjectID:   projectID,
		BuildID:     c.Query("build"),
		IfNoneMatch: c.GetHeader("If-None-Match"),
	}
	if ims := c.GetHeader("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil {
			req.IfModifiedSince = t
		}
	}

	result, err := h.service.ReadFile(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("ETag", result.ETag)
	if !result.Metadata.Modified.IsZero() {
		c.Header("Last-Modified", result.Metadata.Modified.UTC().Format(http.TimeFormat))
	}
	if result.Immutable {
		c.Header("Cache-Control", "public, max-age=31536000, immutable")
	} else {
		c.Header("Cache-Control", "private, no-cache")
	}

	if result.NotModified {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListDirectory handles GET /workspace/:project/dir.
func (h *Handlers) ListDirectory(c *gin.Context) {
	projectID := c.Param("project")
	if !validateParams(c, projectID, c.Query("build"), c.Query("path")) {
		return
	}
	req := access.ListRequest{
		ProjectRoot: h.projectRoot(projectID),
		Path:        c.Query("path"),
		CallerID:    callerID(c),
		ProjectID:   projectID,
		BuildID:     c.Query("build"),
	}

	listing, err := h.service.ListDirectory(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// RateLimitSnapshot handles GET /admin/rate-limits/:caller.
func (h *Handlers) RateLimitSnapshot(c *gin.Context) {
	caller := c.Param("caller")
	c.JSON(http.StatusOK, gin.H{
		"caller_id": caller,
		"buckets":   h.limiter.Snapshot(caller),
	})
}

// RateLimitReset handles DELETE /admin/rate-limits/:caller.
func (h *Handlers) RateLimitReset(c *gin.Context) {
	caller := c.Param("caller")
	removed := h.limiter.Reset(caller)
	c.JSON(http.StatusOK, gin.H{
		"caller_id": caller,
		"reset":     removed,
	})
}

// writeError maps core error kinds to outward statuses. Bodies stay generic:
// denial details live in logs only.
func (h *Handlers) writeError(c *gin.Context, err error) {
	switch types.Kind(err) {
	case types.KindAccessDenied:
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case types.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case types.KindTooLarge:
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "content too large"})
	case types.KindRateLimited:
		// One second is always enough for tokens to refill at the default
		// rate; callers with custom configs treat this as a hint.
		c.Header("Retry-After", "1")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	case types.KindExtractionFailed:
		c.JSON(http.StatusBadGateway, gin.H{"error": "artifact extraction failed"})
	case types.KindUpstreamUnavailable:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upstream unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
