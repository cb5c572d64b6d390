package lights

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client provides access to the lighting endpoint.
type Client struct {
	baseURL    string
	startPath  string
	stopPath   string
	httpClient *http.Client
	logger     zerolog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new lighting client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		startPath: "/rainbow/start",
		stopPath:  "/rainbow/stop",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       zerolog.Nop(),
		maxRetries:   3,
		retryBackoff: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPaths sets the start and stop paths relative to the base URL.
func WithPaths(start, stop string) ClientOption {
	return func(c *Client) {
		if start != "" {
			c.startPath = "/" + strings.TrimLeft(start, "/")
		}
		if stop != "" {
			c.stopPath = "/" + strings.TrimLeft(stop, "/")
		}
	}
}
