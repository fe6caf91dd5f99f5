// Package chat implements real-time two-party messaging transport.
//
// It keeps WebSocket lifecycle, room fan-out, and read-state transitions
// isolated from identity resolution and message persistence so the user
// directory and the durable store remain the sources of truth.
package chat
