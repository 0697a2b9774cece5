// Package artifact caches extracted build artifacts as a secondary
// filesystem.
//
// A cache key is (caller, project, build). The first request for a key
// resolves the build against the registry, cross-checks ownership, downloads
// the archive from object storage, extracts it into a private scratch
// directory with bounded time and size, and indexes the tree. Concurrent
// requests for the same key join the in-flight extraction instead of
// duplicating it. A TTL sweep evicts idle entries and deletes their scratch
// directories.
//
// All collaborators (registry lookup, object fetch, extraction) are injected
// interfaces; the production wiring uses a retryablehttp registry client, an
// S3 fetcher, and the built-in tree extractor.
package artifact
