// Package http exposes the gateway's read operations over REST.
//
// Routes:
//   - GET /workspace/:project/file?path=...&build=...
//   - GET /workspace/:project/dir?path=...&build=...
//   - GET /admin/rate-limits/:caller, DELETE /admin/rate-limits/:caller
//   - GET /health, GET /metrics
//
// Error bodies are deliberately generic. AccessDenied and NotFound differ
// only in status code; neither reveals whether the target path exists or
// why it was rejected.
package http
