// Package api implements the renderer feed: a small local HTTP and
// WebSocket server that tells the on-screen renderer what to show.
//
// This package provides:
//   - GET /api/v1/health for liveness probes
//   - GET /api/v1/state returning the current display as JSON
//   - GET /api/v1/ws streaming display changes over a WebSocket
//   - Middleware stack (request ID, logging, recovery)
//
// # Architecture
//
// The server reads from a DisplaySource (the player) and never writes
// back into it. Every display change is broadcast by the Hub as a
// "display.changed" event; a renderer that connects late receives the
// current display first, then the changes that follow.
//
// The server binds to loopback by default. It has no authentication
// and is not meant to be reachable from the network.
package api
