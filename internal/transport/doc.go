// Package transport implements the frame-level socket contract used by
// managed connections.
//
// A Dialer performs the handshake and returns a Transport that:
//   - Writes text messages frame by frame (WriteFrame)
//   - Reads inbound messages in chunk-sized frames (ReadFrame)
//   - Sends a normal closure once (Close) and releases the socket (Dispose)
//
// Implementations are provided for gorilla/websocket, coder/websocket and an
// in-memory pipe for tests.
package transport
