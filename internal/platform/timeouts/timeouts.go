// Package timeouts defines shared timeout constants used across the
// service boundary. Centralizing these values prevents drift and makes
// the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// StorageOp caps a single persistence call issued on behalf of a
// connected session.
const StorageOp = 5 * time.Second
