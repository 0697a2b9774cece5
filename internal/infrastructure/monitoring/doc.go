// Package monitoring provides Prometheus metrics for the gateway.
//
// Tracked series cover HTTP traffic, file read and listing outcomes, guard
// denials, rate limit rejections, and the artifact cache (cached count,
// extraction results). The collector can be bound to an isolated registry
// for tests.
//
// Usage:
//
//	metrics := monitoring.NewMetrics()
//	router.Use(monitoring.Middleware(metrics))
package monitoring
