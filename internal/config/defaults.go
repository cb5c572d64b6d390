package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultTransport          = "gorilla"
	DefaultChunkSize          = 1024
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultOperationTimeout   = 30 * time.Second
	DefaultCloseTimeout       = 1 * time.Second
	DefaultKeepAlive          = 20 * time.Second
	DefaultMaxAttempts        = 10
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultTriggerExpression  = `string(msg?.button_pressed) == "14"`
	DefaultStartPath          = "rainbow/start"
	DefaultStopPath           = "rainbow/stop"
	DefaultLEDAmount          = 60
	DefaultBrightness         = 50
	DefaultSpeed              = 10
	DefaultRainbowDuration    = 6 * time.Second
	DefaultLightsTimeout      = 10 * time.Second
	DefaultLightsMaxRetries   = 3
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

// ApplyDefaults fills zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	// Socket defaults
	if c.Socket.Transport == "" {
		c.Socket.Transport = DefaultTransport
	}
	if c.Socket.ChunkSize == 0 {
		c.Socket.ChunkSize = DefaultChunkSize
	}
	if c.Socket.HandshakeTimeout == 0 {
		c.Socket.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Socket.OperationTimeout == 0 {
		c.Socket.OperationTimeout = DefaultOperationTimeout
	}
	if c.Socket.CloseTimeout == 0 {
		c.Socket.CloseTimeout = DefaultCloseTimeout
	}
	if c.Socket.KeepAlive == 0 {
		c.Socket.KeepAlive = DefaultKeepAlive
	}

	if c.Instance.ID == "" {
		c.Instance.ID = c.Socket.ID
	}

	// Reconnect defaults
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultMaxAttempts
	}
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectBaseDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}

	if c.Trigger.Expression == "" {
		c.Trigger.Expression = DefaultTriggerExpression
	}

	// Lights defaults
	if c.Lights.StartPath == "" {
		c.Lights.StartPath = DefaultStartPath
	}
	if c.Lights.StopPath == "" {
		c.Lights.StopPath = DefaultStopPath
	}
	if c.Lights.Key == "" {
		c.Lights.Key = c.Socket.ID
	}
	if c.Lights.Amount == 0 {
		c.Lights.Amount = DefaultLEDAmount
	}
	if c.Lights.Brightness == 0 {
		c.Lights.Brightness = DefaultBrightness
	}
	if c.Lights.Speed == 0 {
		c.Lights.Speed = DefaultSpeed
	}
	if c.Lights.Duration == 0 {
		c.Lights.Duration = DefaultRainbowDuration
	}
	if c.Lights.Timeout == 0 {
		c.Lights.Timeout = DefaultLightsTimeout
	}
	if c.Lights.MaxRetries == 0 {
		c.Lights.MaxRetries = DefaultLightsMaxRetries
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
