// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection opens, closes (by reason) and current open state
//   - Inbound and outbound message, frame and byte counts
//   - Callback failures per hook
package metrics
