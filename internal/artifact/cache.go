package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheenhq/workspace-gateway/internal/guard"
	"github.com/sheenhq/workspace-gateway/internal/infrastructure/logging"
	"github.com/sheenhq/workspace-gateway/internal/infrastructure/monitoring"
	"github.com/sheenhq/workspace-gateway/internal/shared/types"
)

// Key identifies one cached extraction. Including the caller keeps tenants'
// scratch trees private even for the same build.
type Key struct {
	CallerID  string
	ProjectID string
	BuildID   string
}

// Extracted is a cached, fully-extracted build artifact.
type Extracted struct {
	Key        Key
	ExtractDir string
	Files      []types.FileMetadata
	CreatedAt  time.Time

	lastAccessed time.Time
}

// Find returns the index entry for a relative slash path, if present.
func (e *Extracted) Find(relPath string) (types.FileMetadata, bool) {
	for _, f := range e.Files {
		if f.Path == relPath {
			return f, true
		}
	}
	return types.FileMetadata{}, false
}

// Config bounds cache behavior.
type Config struct {
	ScratchDir        string
	MaxArchiveSize    int64
	MaxEntries        int
	MaxEntrySize      int64
	ExtractionTimeout time.Duration
	CacheTTL          time.Duration
	// Now is the clock source; tests inject a fake to drive TTL eviction.
	Now func() time.Time
}

type inflight struct {
	done  chan struct{}
	entry *Extracted
	err   error
}

// Cache extracts published build artifacts exactly once per key and serves
// them as a secondary filesystem until a TTL of inactivity evicts them.
type Cache struct {
	mu       sync.Mutex
	entries  map[Key]*Extracted
	inflight map[Key]*inflight

	resolver  ObjectResolver
	fetcher   Fetcher
	extractor Extractor
	cfg       Config
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	now       func() time.Time
}

// NewCache creates an artifact cache with injected collaborators.
func NewCache(resolver ObjectResolver, fetcher Fetcher, extractor Extractor, cfg Config, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries:   make(map[Key]*Extracted),
		inflight:  make(map[Key]*inflight),
		resolver:  resolver,
		fetcher:   fetcher,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
		now:       now,
	}
}

// WithMetrics attaches a metrics collector.
func (c *Cache) WithMetrics(m *monitoring.Metrics) *Cache {
	c.metrics = m
	return c
}

// GetOrExtract returns the cached extraction for the key, joining an
// in-flight extraction if one exists, or performing the extraction itself.
// At most one extraction runs per key; every caller observes the same
// settled result.
func (c *Cache) GetOrExtract(ctx context.Context, callerID, projectID, buildID string) (*Extracted, error) {
	key := Key{CallerID: callerID, ProjectID: projectID, BuildID: buildID}

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		entry.lastAccessed = c.now()
		c.mu.Unlock()
		return entry, nil
	}
	if fl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-fl.done:
			return fl.entry, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	fl := &inflight{done: make(chan struct{})}
	c.inflight[key] = fl
	c.mu.Unlock()

	entry, err := c.extract(ctx, key)

	c.mu.Lock()
	fl.entry = entry
	fl.err = err
	delete(c.inflight, key)
	if err == nil {
		c.entries[key] = entry
		if c.metrics != nil {
			c.metrics.ArtifactsCached.Set(float64(len(c.entries)))
		}
	}
	c.mu.Unlock()
	close(fl.done)

	return entry, err
}

// extract performs the full resolve-fetch-extract-index pipeline. Any
// failure removes the scratch directory so a retry starts clean.
func (c *Cache) extract(ctx context.Context, key Key) (entry *Extracted, err error) {
	if c.metrics != nil {
		defer func() {
			result := "success"
			if err != nil {
				result = "failure"
			}
			c.metrics.ExtractionsTotal.WithLabelValues(result).Inc()
		}()
	}

	ref, err := c.resolver.Resolve(ctx, key.BuildID)
	if err != nil {
		return nil, fmt.Errorf("resolve build %s: %v: %w", key.BuildID, err, types.ErrUpstreamUnavailable)
	}
	if ref == nil {
		return nil, fmt.Errorf("build %s: %w", key.BuildID, types.ErrNotFound)
	}
	if ref.OwnerProjectID != key.ProjectID || ref.OwnerUserID != key.CallerID {
		// Hard failure, but outwardly indistinguishable from not-found so
		// callers cannot probe for other tenants' builds.
		c.logger.Warn("artifact ownership mismatch",
			zap.String("build_id", key.BuildID),
			zap.String("claimed_project", key.ProjectID),
			zap.String("owner_project", ref.OwnerProjectID),
		)
		return nil, fmt.Errorf("build %s: %w", key.BuildID, types.ErrNotFound)
	}

	scratch := filepath.Join(c.cfg.ScratchDir, uuid.NewString())
	if err := os.MkdirAll(scratch, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %v", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(scratch)
		}
	}()

	archivePath := filepath.Join(scratch, "artifact.archive")
	if err := c.fetcher.Fetch(ctx, *ref, archivePath); err != nil {
		return nil, fmt.Errorf("fetch %s: %v: %w", ref.StorageKey, err, types.ErrUpstreamUnavailable)
	}
	if info, statErr := os.Stat(archivePath); statErr == nil {
		if c.cfg.MaxArchiveSize > 0 && info.Size() > c.cfg.MaxArchiveSize {
			return nil, fmt.Errorf("archive is %d bytes, limit %d: %w", info.Size(), c.cfg.MaxArchiveSize, types.ErrTooLarge)
		}
	}

	treeDir := filepath.Join(scratch, "tree")
	extractCtx := ctx
	if c.cfg.ExtractionTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, c.cfg.ExtractionTimeout)
		defer cancel()
	}
	if err := c.extractor.Extract(extractCtx, archivePath, treeDir); err != nil {
		return nil, fmt.Errorf("extract %s: %v: %w", key.BuildID, err, types.ErrExtractionFailed)
	}
	os.Remove(archivePath)

	files, err := indexTree(treeDir, c.cfg.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("index %s: %v: %w", key.BuildID, err, types.ErrExtractionFailed)
	}

	now := c.now()
	c.logger.Info("artifact extracted",
		zap.String("build_id", key.BuildID),
		zap.Int("files", len(files)),
	)
	return &Extracted{
		Key:          key,
		ExtractDir:   treeDir,
		Files:        files,
		CreatedAt:    now,
		lastAccessed: now,
	}, nil
}

// ReadFile reads one file from a cached extraction. The sub-path is
// sanitized and containment-checked again here: the extraction tree is as
// security-sensitive a boundary as the primary project root.
func (c *Cache) ReadFile(entry *Extracted, subPath string) ([]byte, types.FileMetadata, error) {
	clean, ok := guard.SanitizeSubpath(subPath)
	if !ok {
		return nil, types.FileMetadata{}, fmt.Errorf("artifact path %q: %w", subPath, types.ErrAccessDenied)
	}

	md, found := entry.Find(clean)
	if !found {
		return nil, types.FileMetadata{}, fmt.Errorf("artifact path %q: %w", subPath, types.ErrNotFound)
	}

	abs := filepath.Join(entry.ExtractDir, filepath.FromSlash(clean))
	if !guard.WithinBase(entry.ExtractDir, abs) {
		return nil, types.FileMetadata{}, fmt.Errorf("artifact path %q: %w", subPath, types.ErrAccessDenied)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, types.FileMetadata{}, fmt.Errorf("read artifact file: %v", err)
	}
	return data, md, nil
}

// Sweep evicts entries whose last access predates the TTL, removing their
// scratch directories. Staleness is decided under the lock so an entry
// refreshed between sweeps survives.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	now := c.now()
	var stale []*Extracted
	for key, entry := range c.entries {
		if now.Sub(entry.lastAccessed) >= c.cfg.CacheTTL {
			delete(c.entries, key)
			stale = append(stale, entry)
		}
	}
	if c.metrics != nil {
		c.metrics.ArtifactsCached.Set(float64(len(c.entries)))
	}
	c.mu.Unlock()

	for _, entry := range stale {
		// ExtractDir is <scratch>/tree; remove the whole scratch dir.
		os.RemoveAll(filepath.Dir(entry.ExtractDir))
		c.logger.Debug("artifact evicted", zap.String("build_id", entry.Key.BuildID))
	}
	return len(stale)
}

// Len reports the number of cached extractions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// EvictAll removes every cached extraction, for shutdown.
func (c *Cache) EvictAll() {
	c.mu.Lock()
	entries := make([]*Extracted, 0, len(c.entries))
	for key, entry := range c.entries {
		delete(c.entries, key)
		entries = append(entries, entry)
	}
	if c.metrics != nil {
		c.metrics.ArtifactsCached.Set(0)
	}
	c.mu.Unlock()

	for _, entry := range entries {
		os.RemoveAll(filepath.Dir(entry.ExtractDir))
	}
}

// Run sweeps on the given interval until ctx is cancelled. Tests call Sweep
// directly instead.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
