package config

import (
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/minirest/internal/errors"
	"github.com/vango-dev/minirest/pkg/protocol"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Host != DefaultHost {
		t.Errorf("Host = %q, want %q", cfg.Host, DefaultHost)
	}
	if cfg.Limits() != protocol.DefaultMessageLimits() {
		t.Errorf("Limits() = %+v, want protocol defaults", cfg.Limits())
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.TracerName != DefaultTracerName {
		t.Errorf("TracerName = %q", cfg.TracerName)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	var cerr *errors.Error
	if !stderrors.As(err, &cerr) || cerr.Code != "E101" {
		t.Fatalf("Load(missing) = %v, want E101", err)
	}

	configJSON := `{
  "host": "127.0.0.1",
  "buffers": {
    "maxMessageSize": 4096
  },
  "readTimeout": "2s",
  "metricsAddr": "127.0.0.1:9090",
  "log": {
    "level": "debug"
  }
}
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.Buffers.MaxMessageSize != 4096 {
		t.Errorf("MaxMessageSize = %d, want 4096", cfg.Buffers.MaxMessageSize)
	}
	if cfg.Buffers.InitialSize != protocol.DefaultInitialBufferSize {
		t.Errorf("InitialSize = %d, want default", cfg.Buffers.InitialSize)
	}
	if cfg.MetricsAddr != "127.0.0.1:9090" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Path() != filepath.Join(tmpDir, ConfigFileName) {
		t.Errorf("Path() = %q", cfg.Path())
	}
}

func TestLoadOrDefault(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadOrDefault(tmpDir)
	if err != nil {
		t.Fatalf("LoadOrDefault(empty dir) error: %v", err)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty for defaults", cfg.Path())
	}

	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(`{"host":"::1"}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOrDefault(tmpDir)
	if err != nil {
		t.Fatalf("LoadOrDefault error: %v", err)
	}
	if cfg.Host != "::1" {
		t.Errorf("Host = %q", cfg.Host)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(`{"host": `), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(path)
	var cerr *errors.Error
	if !stderrors.As(err, &cerr) || cerr.Code != "E100" {
		t.Fatalf("LoadFile(invalid) = %v, want E100", err)
	}
	if !strings.Contains(cerr.Detail, "Failed to parse") {
		t.Errorf("Detail = %q", cerr.Detail)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)

	cfg := New()
	cfg.Host = "localhost"
	cfg.ReadTimeout = "5s"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q after SaveTo", cfg.Path())
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if loaded.Host != "localhost" || loaded.ReadTimeout != "5s" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Limits() != cfg.Limits() {
		t.Errorf("Limits() = %+v, want %+v", loaded.Limits(), cfg.Limits())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantCode string
	}{
		{"defaults", func(*Config) {}, ""},
		{"negative buffer", func(c *Config) { c.Buffers.ChunkSize = -1 }, "E102"},
		{"max above hard limit", func(c *Config) { c.Buffers.MaxMessageSize = protocol.HardMaxMessageSize + 1 }, "E102"},
		{"bad read timeout", func(c *Config) { c.ReadTimeout = "soon" }, "E103"},
		{"negative write timeout", func(c *Config) { c.WriteTimeout = "-1s" }, "E103"},
		{"zero timeout", func(c *Config) { c.ReadTimeout = "0" }, ""},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "E104"},
		{"upper-case log level", func(c *Config) { c.Log.Level = "WARN" }, ""},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "E105"},
		{"json log format", func(c *Config) { c.Log.Format = "json" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var cerr *errors.Error
			if !stderrors.As(err, &cerr) || cerr.Code != tt.wantCode {
				t.Errorf("Validate() = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	cfg := New()
	cfg.Log.Level = "debug"
	level, err := cfg.LogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("LogLevel() = %v, %v", level, err)
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"127.0.0.1", 80, "127.0.0.1:80"},
		{"::1", 65535, "[::1]:65535"},
	}
	for _, tt := range tests {
		cfg := New()
		cfg.Host = tt.host
		if got := cfg.Address(tt.port); got != tt.want {
			t.Errorf("Address(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestServerConfig(t *testing.T) {
	cfg := New()
	cfg.Host = "127.0.0.1"
	cfg.ReadTimeout = "250ms"
	cfg.WriteTimeout = "1s"
	cfg.Buffers.MaxMessageSize = 8192

	srv, err := cfg.ServerConfig(9000)
	if err != nil {
		t.Fatalf("ServerConfig error: %v", err)
	}
	if srv.Address != "127.0.0.1:9000" {
		t.Errorf("Address = %q", srv.Address)
	}
	if srv.ReadTimeout != 250*time.Millisecond || srv.WriteTimeout != time.Second {
		t.Errorf("timeouts = %v/%v", srv.ReadTimeout, srv.WriteTimeout)
	}
	if srv.Limits.MaxSize != 8192 {
		t.Errorf("Limits.MaxSize = %d", srv.Limits.MaxSize)
	}
	if err := srv.ValidateConfig(); err != nil {
		t.Errorf("ValidateConfig() = %v", err)
	}

	cfg.ReadTimeout = "later"
	if _, err := cfg.ServerConfig(9000); err == nil {
		t.Error("ServerConfig with invalid timeout should fail")
	}
}
