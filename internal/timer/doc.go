// Package timer implements the wiotimer application logic.
//
// The Timer registers one managed connection to the button hub. When an
// inbound payload matches the trigger it runs the rainbow: lights on, wait
// the configured duration, lights off. A second press while the rainbow is
// on turns it off early. Unsolicited disconnects are retried with
// exponential backoff up to a fixed number of attempts.
package timer
