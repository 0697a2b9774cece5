package access

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sheenhq/workspace-gateway/internal/artifact"
	"github.com/sheenhq/workspace-gateway/internal/guard"
	"github.com/sheenhq/workspace-gateway/internal/infrastructure/logging"
	"github.com/sheenhq/workspace-gateway/internal/infrastructure/monitoring"
	"github.com/sheenhq/workspace-gateway/internal/probe"
	"github.com/sheenhq/workspace-gateway/internal/ratelimit"
	"github.com/sheenhq/workspace-gateway/internal/shared/types"
)

// ReadRequest describes one file read.
type ReadRequest struct {
	ProjectRoot     string
	Path            string
	CallerID        string
	ProjectID       string
	BuildID         string // optional: enables artifact fallback
	IfNoneMatch     string
	IfModifiedSince time.Time
}

// ListRequest describes one directory listing.
type ListRequest struct {
	ProjectRoot string
	Path        string
	CallerID    string
	ProjectID   string
	BuildID     string // optional: enables artifact fallback
}

// Service orchestrates the guard, probe, rate limiter and artifact cache
// into the gateway's two read operations.
type Service struct {
	guard       *guard.Guard
	probe       *probe.Probe
	limiter     *ratelimit.Limiter
	artifacts   *artifact.Cache
	maxFileSize int64
	logger      *logging.Logger
	metrics     *monitoring.Metrics
}

// Config holds facade construction parameters.
type Config struct {
	MaxFileSize int64
}

// NewService creates the access facade. The artifact cache may be nil, which
// disables the fallback path.
func NewService(g *guard.Guard, p *probe.Probe, l *ratelimit.Limiter, artifacts *artifact.Cache, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		guard:       g,
		probe:       p,
		limiter:     l,
		artifacts:   artifacts,
		maxFileSize: cfg.MaxFileSize,
		logger:      logger,
	}
}

// WithMetrics attaches a metrics collector.
func (s *Service) WithMetrics(m *monitoring.Metrics) *Service {
	s.metrics = m
	return s
}

// ReadFile reads one file from the caller's project, short-circuiting on
// cache validators and falling back to the published build artifact when the
// primary tree has nothing to offer.
func (s *Service) ReadFile(ctx context.Context, req ReadRequest) (*types.FileContent, error) {
	if dec := s.limiter.Check(req.CallerID, ratelimit.OpFileRead); !dec.Allowed {
		s.countRateLimited(ratelimit.OpFileRead)
		return nil, fmt.Errorf("caller %s: %w", req.CallerID, types.ErrRateLimited)
	}

	if !s.primaryExists(req.ProjectRoot) {
		return s.readFromArtifact(ctx, req)
	}

	res := s.guard.Validate(req.ProjectRoot, req.Path)
	if !res.Allowed {
		s.denied("read", req, res.Reason)
		return nil, fmt.Errorf("path %q: %w", req.Path, types.ErrAccessDenied)
	}

	md, err := s.probe.Stat(res.CanonicalPath)
	if err != nil {
		if types.Kind(err) == types.KindNotFound {
			return s.readFromArtifact(ctx, req)
		}
		return nil, err
	}
	if md.IsDir {
		return nil, fmt.Errorf("path %q is a directory: %w", req.Path, types.ErrNotFound)
	}

	etag := StatETag(res.CanonicalPath, md.Size, md.Modified)
	if etagMatches(req.IfNoneMatch, etag) || (req.IfNoneMatch == "" && notModifiedSince(req.IfModifiedSince, md.Modified)) {
		s.countNotModified()
		return &types.FileContent{Metadata: md, ETag: etag, NotModified: true}, nil
	}

	if err := s.probe.ValidateSize(res.CanonicalPath, s.maxFileSize); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(res.CanonicalPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v", req.Path, err)
	}

	content, enc, charset := encodeContent(data, md.IsBinary)
	s.countRead("success")
	return &types.FileContent{
		Content:  content,
		Metadata: md,
		Encoding: enc,
		Charset:  charset,
		ETag:     etag,
	}, nil
}

// ListDirectory lists one directory, filtering every entry through the
// guard. Blocked entries are counted but never named.
func (s *Service) ListDirectory(ctx context.Context, req ListRequest) (*types.DirectoryListing, error) {
	if dec := s.limiter.Check(req.CallerID, ratelimit.OpDirList); !dec.Allowed {
		s.countRateLimited(ratelimit.OpDirList)
		return nil, fmt.Errorf("caller %s: %w", req.CallerID, types.ErrRateLimited)
	}

	if !s.primaryExists(req.ProjectRoot) {
		return s.listFromArtifact(ctx, req)
	}

	res := s.guard.Validate(req.ProjectRoot, req.Path)
	if !res.Allowed {
		s.denied("list", ReadRequest{ProjectRoot: req.ProjectRoot, Path: req.Path, CallerID: req.CallerID}, res.Reason)
		return nil, fmt.Errorf("path %q: %w", req.Path, types.ErrAccessDenied)
	}

	md, err := s.probe.Stat(res.CanonicalPath)
	if err != nil {
		if types.Kind(err) == types.KindNotFound && req.BuildID != "" {
			return s.listFromArtifact(ctx, req)
		}
		return nil, err
	}
	if !md.IsDir {
		return nil, fmt.Errorf("path %q is not a directory: %w", req.Path, types.ErrNotFound)
	}

	entries, err := os.ReadDir(res.CanonicalPath)
	if err != nil {
		return nil, fmt.Errorf("list %s: %v", req.Path, err)
	}

	listing := &types.DirectoryListing{Path: req.Path, Files: []types.FileMetadata{}}
	for _, entry := range entries {
		childRel := filepath.Join(req.Path, entry.Name())
		childRes := s.guard.Validate(req.ProjectRoot, childRel)
		if !childRes.Allowed {
			listing.FilteredCount++
			continue
		}
		childMD, err := s.probe.Stat(childRes.CanonicalPath)
		if err != nil {
			listing.FilteredCount++
			continue
		}
		childMD.Path = filepath.ToSlash(childRel)
		listing.Files = append(listing.Files, childMD)
	}
	listing.TotalCount = len(listing.Files)

	if listing.TotalCount == 0 && req.BuildID != "" {
		if artifactListing, err := s.listFromArtifact(ctx, req); err == nil {
			return artifactListing, nil
		}
	}

	s.countList("success")
	return listing, nil
}

// primaryExists reports whether the project root directory is present.
func (s *Service) primaryExists(root string) bool {
	info, err := os.Stat(root)
	return err == nil && info.IsDir()
}

// readFromArtifact serves a read from the extracted build artifact. Content
// here is immutable, so the validator is a content hash and callers may
// cache aggressively.
func (s *Service) readFromArtifact(ctx context.Context, req ReadRequest) (*types.FileContent, error) {
	if s.artifacts == nil || req.BuildID == "" {
		return nil, fmt.Errorf("path %q: %w", req.Path, types.ErrNotFound)
	}

	entry, err := s.artifacts.GetOrExtract(ctx, req.CallerID, req.ProjectID, req.BuildID)
	if err != nil {
		return nil, err
	}

	data, md, err := s.artifacts.ReadFile(entry, req.Path)
	if err != nil {
		if types.Kind(err) == types.KindAccessDenied {
			s.denied("read", req, "artifact sub-path rejected")
		}
		return nil, err
	}

	md.IsBinary = sniffBinary(data)
	etag := ContentETag(data)
	if etagMatches(req.IfNoneMatch, etag) {
		s.countNotModified()
		return &types.FileContent{Metadata: md, ETag: etag, Immutable: true, NotModified: true}, nil
	}

	content, enc, charset := encodeContent(data, md.IsBinary)
	s.countRead("artifact")
	return &types.FileContent{
		Content:   content,
		Metadata:  md,
		Encoding:  enc,
		Charset:   charset,
		ETag:      etag,
		Immutable: true,
	}, nil
}

// listFromArtifact lists the immediate children of a directory inside the
// extracted artifact tree, synthesizing directory entries from the flat
// file index.
func (s *Service) listFromArtifact(ctx context.Context, req ListRequest) (*types.DirectoryListing, error) {
	if s.artifacts == nil || req.BuildID == "" {
		return nil, fmt.Errorf("path %q: %w", req.Path, types.ErrNotFound)
	}

	entry, err := s.artifacts.GetOrExtract(ctx, req.CallerID, req.ProjectID, req.BuildID)
	if err != nil {
		return nil, err
	}

	prefix := ""
	if req.Path != "" && req.Path != "." {
		clean, ok := guard.SanitizeSubpath(req.Path)
		if !ok {
			s.denied("list", ReadRequest{Path: req.Path, CallerID: req.CallerID}, "artifact sub-path rejected")
			return nil, fmt.Errorf("path %q: %w", req.Path, types.ErrAccessDenied)
		}
		prefix = clean + "/"
	}

	children := make(map[string]types.FileMetadata)
	matched := false
	for _, f := range entry.Files {
		if !strings.HasPrefix(f.Path, prefix) {
			continue
		}
		matched = true
		rest := strings.TrimPrefix(f.Path, prefix)
		name, _, isNested := strings.Cut(rest, "/")
		if isNested {
			if _, seen := children[name]; !seen {
				children[name] = types.FileMetadata{
					Name:  name,
					Path:  prefix + name,
					IsDir: true,
				}
			}
			continue
		}
		children[name] = f
	}
	if !matched && prefix != "" {
		return nil, fmt.Errorf("path %q: %w", req.Path, types.ErrNotFound)
	}

	listing := &types.DirectoryListing{
		Path:         strings.TrimSuffix(prefix, "/"),
		Files:        make([]types.FileMetadata, 0, len(children)),
		FromArtifact: true,
	}
	for _, md := range children {
		listing.Files = append(listing.Files, md)
	}
	sort.Slice(listing.Files, func(i, j int) bool {
		return listing.Files[i].Name < listing.Files[j].Name
	})
	listing.TotalCount = len(listing.Files)

	s.countList("artifact")
	return listing, nil
}

// denied logs the detailed internal reason; outward callers only ever see
// the generic access-denied outcome.
func (s *Service) denied(op string, req ReadRequest, reason string) {
	if s.metrics != nil {
		s.metrics.AccessDenials.Inc()
	}
	s.logger.Warn("access denied",
		zap.String("op", op),
		zap.String("caller_id", req.CallerID),
		zap.String("path", req.Path),
		zap.String("reason", reason),
	)
}

func (s *Service) countRead(outcome string) {
	if s.metrics != nil {
		s.metrics.ReadsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countList(outcome string) {
	if s.metrics != nil {
		s.metrics.ListingsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countNotModified() {
	if s.metrics != nil {
		s.metrics.NotModifiedHits.Inc()
	}
}

func (s *Service) countRateLimited(op ratelimit.OperationClass) {
	if s.metrics != nil {
		s.metrics.RateLimitRejections.WithLabelValues(string(op)).Inc()
	}
}
