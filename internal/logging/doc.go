// Package logging provides the logger collaborator used by managed
// connections and the zerolog setup used by the binaries.
//
// The core only sees Logger (Write/WriteError at Debug, Warn or Error).
// FromZerolog adapts a zerolog.Logger; Setup builds one from config with
// console, file and Grafana Loki sinks.
package logging
