// Package connection implements the managed connection registry.
//
// The Registry:
//   - Maps caller-chosen ids to Handles, one WebSocket session each
//   - Connects, disconnects, removes and sends by id; unknown ids are no-ops
//   - Splits outbound payloads into frames and reassembles inbound ones
//   - Runs one read loop per open session and dispatches callbacks from it
//   - Tracks peer closes and read failures as disconnects
//
// Callbacks are supplied at Add time and fire in this order per session:
// OnConnect once, OnMessage per complete inbound message, OnDisconnect once.
package connection
