// Package probe reports filesystem metadata for validated paths.
//
// Binary classification is a heuristic: a null byte anywhere in the first
// 1KB marks the file binary, and unreadable files fail safe to binary. MIME
// detection (gabriel-vasile/mimetype) is advisory metadata alongside the
// heuristic, never the deciding signal.
//
// Nothing is cached; every call re-stats the filesystem.
package probe
