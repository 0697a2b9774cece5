// Package access orchestrates the gateway's read operations.
//
// Every request flows rate limiter → path guard → metadata probe → content,
// with conditional-request short-circuits (ETag, If-Modified-Since) before
// any content read. When the primary project tree is missing or empty and a
// build identifier accompanies the request, reads fall back to the extracted
// build artifact, whose content is immutable and validated by content hash
// instead of stat fields.
//
// AccessDenied and NotFound outcomes carry detailed reasons only into logs;
// the structures returned to transport layers never reveal whether a denied
// path exists.
package access
