package ytdlp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tiksound/infrastructure/process"
)

// DefaultMaxHeight caps the downloaded video resolution
const DefaultMaxHeight = 720

// Client holds what the yt-dlp adapters share: binary path, runner and logger
type Client struct {
	binaryPath string
	runner     process.Runner
	maxHeight  int
	logger     *zap.Logger
}

// Option is a functional option for configuring Client
type Option func(*Client)

// WithBinaryPath sets a custom yt-dlp executable path
func WithBinaryPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.binaryPath = path
		}
	}
}

// WithRunner sets a custom command runner (for testing)
func WithRunner(runner process.Runner) Option {
	return func(c *Client) {
		c.runner = runner
	}
}

// WithMaxHeight sets the vertical resolution ceiling for downloads
func WithMaxHeight(h int) Option {
	return func(c *Client) {
		if h > 0 {
			c.maxHeight = h
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a yt-dlp client
func NewClient(opts ...Option) *Client {
	c := &Client{
		binaryPath: "yt-dlp",
		runner:     process.NewExecRunner(),
		maxHeight:  DefaultMaxHeight,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VerifyInstalled checks that yt-dlp is available
func (c *Client) VerifyInstalled(ctx context.Context) error {
	if _, err := c.runner.Run(ctx, c.binaryPath, "--version"); err != nil {
		return fmt.Errorf("yt-dlp not found or not executable: %w", err)
	}
	return nil
}
