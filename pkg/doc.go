// Package pkg provides shared utilities for the softdfu USB DFU run-time
// implementation.
//
// This package contains common functionality used across the device-side
// class implementation and the host-side tooling, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for USB protocol errors
//   - Component identifiers for log filtering
//
// The package is designed to have zero external dependencies, relying
// only on the Go standard library.
//
// # Logging
//
// The logging subsystem wraps [log/slog] with USB-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentDFU, "detach requested", "timeoutMS", 255)
//
// # Errors
//
// Common USB errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrStall) {
//	    // Answer the control request with a STALL handshake
//	}
package pkg
