// Package main is the entry point for the multiview backend server.
//
// The server lets a browser grid embed many third-party video pages at
// once. It provides:
//   - An embedding proxy that strips anti-framing defenses from target
//     pages and injects a runtime that keeps them embeddable
//   - A stream extractor that resolves source pages to playable embed
//     URLs or mirrored server lists
//   - A share store for persisting grid layouts behind short ids
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
