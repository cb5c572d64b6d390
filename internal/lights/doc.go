// Package lights drives the LED strip's HTTP endpoint.
//
// StartRainbow and StopRainbow POST to the configured paths with the strip
// parameters as query values. Requests retry with exponential backoff and
// jitter on 5xx and 429 responses.
package lights
