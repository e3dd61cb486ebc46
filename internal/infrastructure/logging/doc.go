// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Proxy listening", zap.String("port", "8000"))
//	logger.Error("Upstream fetch failed", zap.Error(err))
package logging
