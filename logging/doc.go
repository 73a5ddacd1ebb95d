// Package logging provides a minimal logging interface and adapters for ModelBridge.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the resolver and backends use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - BridgeLogger with contextual helpers and json, text and pretty formats
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - MemoryLogger for asserting on log output in tests
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	bridge := modelbridge.New(func(o *modelbridge.Options) {
//		o.Logger = logger
//	})
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
