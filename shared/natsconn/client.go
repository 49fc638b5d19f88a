package natsconn

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Config holds NATS connection configuration
type Config struct {
	URL           string
	Name          string
	RetryAttempts int
	RetryInterval time.Duration
}

// Client represents a NATS client with a JetStream context
type Client struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	config *Config
	logger *slog.Logger
}

// NewClient connects to NATS and initializes JetStream
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	attempts := config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var conn *nats.Conn
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		logger.Info("Connecting to NATS",
			slog.String("url", config.URL),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		conn, err = nats.Connect(config.URL, nats.Name(config.Name))
		if err == nil {
			break
		}

		logger.Error("Failed to connect to NATS",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			time.Sleep(config.RetryInterval)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", attempts, err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	logger.Info("NATS connection established",
		slog.String("url", config.URL),
	)

	return &Client{
		conn:   conn,
		js:     js,
		config: config,
		logger: logger,
	}, nil
}

// JetStream returns the JetStream context for object-store operations
func (c *Client) JetStream() nats.JetStreamContext {
	return c.js
}

// Close drains and closes the NATS connection
func (c *Client) Close() {
	c.logger.Info("Closing NATS connection")

	if c.conn != nil {
		if err := c.conn.Drain(); err != nil {
			c.logger.Error("Failed to drain NATS connection",
				slog.Any("error", err),
			)
			c.conn.Close()
		}
	}
}
