package config

import (
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/minirest/internal/errors"
	"github.com/vango-dev/minirest/pkg/protocol"
	"github.com/vango-dev/minirest/pkg/server"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "minirest.json"

	// DefaultHost is the default listen host: every interface, like the
	// plain "port" form of the command line.
	DefaultHost = ""

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log format.
	DefaultLogFormat = "text"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "minirest"
)

// Config represents the complete minirest.json configuration.
type Config struct {
	// Host is the interface to listen on. Empty means all interfaces.
	Host string `json:"host,omitempty"`

	// Buffers sizes the receive buffer of the connection loop.
	Buffers BufferConfig `json:"buffers,omitempty"`

	// ReadTimeout bounds the time to receive a request (e.g., "10s").
	// Empty or "0" disables it.
	ReadTimeout string `json:"readTimeout,omitempty"`

	// WriteTimeout bounds the time to write a response.
	WriteTimeout string `json:"writeTimeout,omitempty"`

	// MetricsAddr is the address of the admin server. Empty disables it.
	MetricsAddr string `json:"metricsAddr,omitempty"`

	// TracerName is the OpenTelemetry tracer name.
	TracerName string `json:"tracerName,omitempty"`

	// CanonicalPaths normalizes command paths before routing
	// ("/api//version/" reaches "/api/version").
	CanonicalPaths bool `json:"canonicalPaths,omitempty"`

	// Log configures the process logger.
	Log LogConfig `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// BufferConfig mirrors protocol.MessageLimits.
type BufferConfig struct {
	InitialSize    int `json:"initialSize,omitempty"`
	GrowthStep     int `json:"growthStep,omitempty"`
	ChunkSize      int `json:"chunkSize,omitempty"`
	MaxMessageSize int `json:"maxMessageSize,omitempty"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Host: DefaultHost,
		Buffers: BufferConfig{
			InitialSize:    protocol.DefaultInitialBufferSize,
			GrowthStep:     protocol.DefaultGrowthStep,
			ChunkSize:      protocol.DefaultChunkSize,
			MaxMessageSize: protocol.DefaultMaxMessageSize,
		},
		TracerName: DefaultTracerName,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load loads minirest.json from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadOrDefault loads minirest.json from dir, or returns the defaults if
// there is none.
func LoadOrDefault(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("No configuration file at " + path).
				WithSuggestion("Run 'minirest init' to write one with the defaults")
		}
		return nil, errors.New("E100").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E100").
			WithDetail("Failed to parse " + path + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// SaveTo saves the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E100").Wrap(err)
	}

	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E100").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path the config was loaded from or saved to.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in zero values left by a partial file.
func (c *Config) applyDefaults() {
	if c.Buffers.InitialSize == 0 {
		c.Buffers.InitialSize = protocol.DefaultInitialBufferSize
	}
	if c.Buffers.GrowthStep == 0 {
		c.Buffers.GrowthStep = protocol.DefaultGrowthStep
	}
	if c.Buffers.ChunkSize == 0 {
		c.Buffers.ChunkSize = protocol.DefaultChunkSize
	}
	if c.Buffers.MaxMessageSize == 0 {
		c.Buffers.MaxMessageSize = protocol.DefaultMaxMessageSize
	}
	if c.TracerName == "" {
		c.TracerName = DefaultTracerName
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate checks every value that the file or flags may have set.
func (c *Config) Validate() error {
	b := c.Buffers
	if b.InitialSize < 0 || b.GrowthStep < 0 || b.ChunkSize < 0 || b.MaxMessageSize < 0 {
		return errors.New("E102").
			WithDetail("Buffer sizes must not be negative")
	}
	if b.MaxMessageSize > protocol.HardMaxMessageSize {
		return errors.New("E102").
			WithDetail("maxMessageSize " + strconv.Itoa(b.MaxMessageSize) + " exceeds " + strconv.Itoa(protocol.HardMaxMessageSize))
	}
	if _, err := parseTimeout(c.ReadTimeout); err != nil {
		return errors.New("E103").WithDetail("readTimeout: " + err.Error())
	}
	if _, err := parseTimeout(c.WriteTimeout); err != nil {
		return errors.New("E103").WithDetail("writeTimeout: " + err.Error())
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("E105").
			WithDetail("Unknown log format " + strconv.Quote(c.Log.Format))
	}
	return nil
}

// Limits returns the buffer settings as protocol limits.
func (c *Config) Limits() protocol.MessageLimits {
	return protocol.MessageLimits{
		InitialSize: c.Buffers.InitialSize,
		GrowthStep:  c.Buffers.GrowthStep,
		ChunkSize:   c.Buffers.ChunkSize,
		MaxSize:     c.Buffers.MaxMessageSize,
	}
}

// Address returns the listen address for port.
func (c *Config) Address(port int) string {
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, errors.New("E104").
			WithDetail("Unknown log level " + strconv.Quote(c.Log.Level))
	}
	return level, nil
}

// ServerConfig builds the connection loop configuration for port.
func (c *Config) ServerConfig(port int) (*server.ServerConfig, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	readTimeout, _ := parseTimeout(c.ReadTimeout)
	writeTimeout, _ := parseTimeout(c.WriteTimeout)

	cfg := server.DefaultServerConfig().WithAddress(c.Address(port))
	cfg.Limits = c.Limits()
	cfg.ReadTimeout = readTimeout
	cfg.WriteTimeout = writeTimeout
	return cfg, nil
}

// parseTimeout accepts "" and "0" as no timeout.
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.Newf(errors.CategoryConfig, "%s is negative", s)
	}
	return d, nil
}
