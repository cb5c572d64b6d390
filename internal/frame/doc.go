// Package frame implements the message framing used by managed connections.
//
// Outbound text payloads are split into fixed-size frames; inbound frames are
// accumulated until a final frame completes the message:
//   - Encode: payload → ordered frames, last one marked Final
//   - Decode: frames → one payload, or ErrClosed on a close frame
//   - Chunk size defaults to 1024 bytes
package frame
