package config

import "time"

// Config is the root configuration for a wiotimer instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Socket    SocketConfig    `yaml:"socket"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Trigger   TriggerConfig   `yaml:"trigger"`
	Lights    LightsConfig    `yaml:"lights"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InstanceConfig identifies this process in logs and metrics.
type InstanceConfig struct {
	ID string `yaml:"id"` // Defaults to socket.id
}

// SocketConfig holds the managed WebSocket connection settings.
type SocketConfig struct {
	ID               string        `yaml:"id"`
	URI              string        `yaml:"uri"`       // ws:// or wss:// endpoint of the hub
	Transport        string        `yaml:"transport"` // gorilla or coder
	ChunkSize        int           `yaml:"chunk_size"`
	AnnounceID       *bool         `yaml:"announce_id"` // Send the id after connect (default true)
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	CloseTimeout     time.Duration `yaml:"close_timeout"`
	KeepAlive        time.Duration `yaml:"keep_alive"`
}

// Announce reports whether the connection id is sent after connect.
func (s SocketConfig) Announce() bool {
	return s.AnnounceID == nil || *s.AnnounceID
}

// ReconnectConfig bounds reconnection after an unsolicited disconnect.
type ReconnectConfig struct {
	MaxAttempts int           `yaml:"max_attempts"` // Negative disables reconnection
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// TriggerConfig holds the button detection expression.
type TriggerConfig struct {
	Expression string `yaml:"expression"`
}

// LightsConfig holds the lighting endpoint settings.
type LightsConfig struct {
	BaseURL    string        `yaml:"base_url"`
	StartPath  string        `yaml:"start_path"`
	StopPath   string        `yaml:"stop_path"`
	Key        string        `yaml:"key"` // Defaults to socket.id
	Amount     int           `yaml:"amount"`
	Brightness int           `yaml:"brightness"`
	Speed      int           `yaml:"speed"`
	Duration   time.Duration `yaml:"duration"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// LoggingConfig selects log level, format and sinks.
type LoggingConfig struct {
	Level  string     `yaml:"level"`
	Format string     `yaml:"format"` // json or text
	File   string     `yaml:"file"`   // Optional additional file sink
	Loki   LokiConfig `yaml:"loki"`
}

// LokiConfig configures the optional Grafana Loki sink.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Labels  map[string]string `yaml:"labels"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
