package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/vango-dev/minirest/pkg/protocol"
)

// ServerConfig holds configuration for the connection loop.
type ServerConfig struct {
	// Address is the TCP address to listen on (e.g., ":8080" or "localhost:3000").
	// Default: ":8080".
	Address string

	// Buffers

	// Limits controls the receive buffer of the loop.
	// Zero fields take the protocol defaults (1KB initial, 1KB growth,
	// 1KB reads, 1MB max).
	Limits protocol.MessageLimits

	// SendBufferSize is the initial capacity of the reusable send buffer.
	// Default: 1024.
	SendBufferSize int

	// Timeouts

	// ReadTimeout bounds the time to receive a full message.
	// Default: 0, no timeout. A silent client then blocks the loop.
	ReadTimeout time.Duration

	// WriteTimeout bounds the time to write the response.
	// Default: 0, no timeout.
	WriteTimeout time.Duration

	// ShutdownTimeout is the maximum time Run waits for the connection in
	// flight when stopping.
	// Default: 5 seconds.
	ShutdownTimeout time.Duration

	// Hooks

	// Observer receives connection events. Optional.
	Observer Observer

	// Logger is used for server logs.
	// Default: slog.Default() with component=server.
	Logger *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:         ":8080",
		Limits:          protocol.DefaultMessageLimits(),
		SendBufferSize:  protocol.DefaultInitialBufferSize,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// WithAddress sets the server address and returns the config for chaining.
func (c *ServerConfig) WithAddress(addr string) *ServerConfig {
	c.Address = addr
	return c
}

// WithReadTimeout sets the read timeout and returns the config for chaining.
func (c *ServerConfig) WithReadTimeout(d time.Duration) *ServerConfig {
	c.ReadTimeout = d
	return c
}

// WithObserver sets the observer and returns the config for chaining.
func (c *ServerConfig) WithObserver(o Observer) *ServerConfig {
	c.Observer = o
	return c
}

// WithLogger sets the logger and returns the config for chaining.
func (c *ServerConfig) WithLogger(l *slog.Logger) *ServerConfig {
	c.Logger = l
	return c
}

// ValidateConfig reports configuration values that cannot work.
func (c *ServerConfig) ValidateConfig() error {
	var errs []error
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		errs = append(errs, fmt.Errorf("address %q: %w", c.Address, err))
	}
	if c.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("read timeout %s is negative", c.ReadTimeout))
	}
	if c.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("write timeout %s is negative", c.WriteTimeout))
	}
	if c.Limits.MaxSize > protocol.HardMaxMessageSize {
		errs = append(errs, fmt.Errorf("max message size %d exceeds %d", c.Limits.MaxSize, protocol.HardMaxMessageSize))
	}
	return errors.Join(errs...)
}

// applyDefaults fills unset fields from DefaultServerConfig.
func (c *ServerConfig) applyDefaults() {
	defaults := DefaultServerConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = defaults.SendBufferSize
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default().With("component", "server")
	}
}
