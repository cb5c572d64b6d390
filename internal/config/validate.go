package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rickgao/wiotimer/internal/frame"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Socket.validate("socket"); err != nil {
		return err
	}

	if c.Reconnect.MaxAttempts > 0 && c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay (%s) cannot be less than base_delay (%s)",
			c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}

	if strings.TrimSpace(c.Trigger.Expression) == "" {
		return errors.New("trigger.expression is required")
	}

	if err := c.Lights.validate("lights"); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	if c.Logging.Loki.Enabled && c.Logging.Loki.URL == "" {
		return errors.New("logging.loki.url is required when loki is enabled")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (s *SocketConfig) validate(prefix string) error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%s.id is required", prefix)
	}
	if s.URI == "" {
		return fmt.Errorf("%s.uri is required", prefix)
	}
	u, err := url.Parse(s.URI)
	if err != nil {
		return fmt.Errorf("%s.uri: %w", prefix, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%s.uri must use ws or wss, got %q", prefix, u.Scheme)
	}
	switch strings.ToLower(s.Transport) {
	case "gorilla", "coder":
	default:
		return fmt.Errorf("%s.transport must be gorilla or coder, got %q", prefix, s.Transport)
	}
	if s.ChunkSize < 1 || s.ChunkSize > frame.MaxChunkSize {
		return fmt.Errorf("%s.chunk_size must be between 1 and %d, got %d", prefix, frame.MaxChunkSize, s.ChunkSize)
	}
	return nil
}

func (l *LightsConfig) validate(prefix string) error {
	if l.BaseURL == "" {
		return fmt.Errorf("%s.base_url is required", prefix)
	}
	u, err := url.Parse(l.BaseURL)
	if err != nil {
		return fmt.Errorf("%s.base_url: %w", prefix, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s.base_url must use http or https, got %q", prefix, u.Scheme)
	}
	if l.Amount < 1 {
		return fmt.Errorf("%s.amount must be >= 1", prefix)
	}
	if l.Brightness < 0 || l.Brightness > 255 {
		return fmt.Errorf("%s.brightness must be between 0 and 255, got %d", prefix, l.Brightness)
	}
	if l.Duration <= 0 {
		return fmt.Errorf("%s.duration must be > 0", prefix)
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("%s.max_retries must be >= 0", prefix)
	}
	return nil
}
