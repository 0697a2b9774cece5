// Package main is the entry point for the workspace gateway server.
//
// The gateway mediates read access to tenant workspace files: canonical
// path validation, glob-based filtering, binary probing, per-caller token
// budgets, ETag conditional reads, and extraction of immutable build
// artifacts fetched from object storage.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
