// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Access decisions (denied paths, ownership mismatches) are logged here with
// their detailed internal reasons; outward responses only ever carry the
// generic reason.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Gateway starting", zap.String("port", "8000"))
//	logger.Warn("Path rejected", zap.String("reason", res.Reason))
package logging
