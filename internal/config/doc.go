// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Sections:
//   - socket: the managed connection (id, uri, transport, framing, timeouts)
//   - reconnect: supervisor limits for unsolicited disconnects
//   - trigger: expression matched against inbound payloads
//   - lights: HTTP lighting endpoint driven by the timer
//   - logging, metrics: ambient sinks
//
// See configs/wiotimer.example.yaml for a complete file.
package config
