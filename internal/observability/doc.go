// Package observability provides structured logging and metrics for the
// chat gateway.
//
// This package implements:
//   - Structured logging with contextual fields (zap-based)
//   - Request ID propagation into every log entry
//   - In-memory request, latency and token usage accounting per provider/model
package observability
