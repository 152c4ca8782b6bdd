// Package timeouts defines shared timeout constants used across the service.
// Centralizing these values keeps the durations discoverable and prevents
// drift between the transport and storage boundaries.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// CanvasRead caps the wait for a snapshot read during a board join.
const CanvasRead = 3 * time.Second

// CanvasWrite caps the wait for a snapshot write before an update is
// broadcast. Expiry counts as a persistence failure and suppresses the
// broadcast.
const CanvasWrite = 3 * time.Second
