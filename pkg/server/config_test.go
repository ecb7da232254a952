package server

import (
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/minirest/pkg/protocol"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()

	if cfg.Address != ":8080" {
		t.Errorf("Address = %q, want :8080", cfg.Address)
	}
	if cfg.Limits != protocol.DefaultMessageLimits() {
		t.Errorf("Limits = %+v, want defaults", cfg.Limits)
	}
	if cfg.SendBufferSize != 1024 {
		t.Errorf("SendBufferSize = %d, want 1024", cfg.SendBufferSize)
	}
	if cfg.ReadTimeout != 0 || cfg.WriteTimeout != 0 {
		t.Errorf("timeouts = %v/%v, want off", cfg.ReadTimeout, cfg.WriteTimeout)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}
	if err := cfg.ValidateConfig(); err != nil {
		t.Errorf("ValidateConfig() = %v", err)
	}
}

func TestServerConfigClone(t *testing.T) {
	cfg := DefaultServerConfig().WithAddress("127.0.0.1:9000")
	clone := cfg.Clone()
	clone.Address = ":1"

	if cfg.Address != "127.0.0.1:9000" {
		t.Errorf("original modified: %q", cfg.Address)
	}
	if (*ServerConfig)(nil).Clone() != nil {
		t.Error("nil Clone() should be nil")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr []string
	}{
		{
			name:   "valid_host_port",
			mutate: func(c *ServerConfig) { c.Address = "localhost:3000" },
		},
		{
			name:    "missing_port",
			mutate:  func(c *ServerConfig) { c.Address = "localhost" },
			wantErr: []string{"address"},
		},
		{
			name:    "negative_read_timeout",
			mutate:  func(c *ServerConfig) { c.ReadTimeout = -time.Second },
			wantErr: []string{"read timeout"},
		},
		{
			name:    "negative_write_timeout",
			mutate:  func(c *ServerConfig) { c.WriteTimeout = -time.Second },
			wantErr: []string{"write timeout"},
		},
		{
			name:    "max_size_above_hard_limit",
			mutate:  func(c *ServerConfig) { c.Limits.MaxSize = protocol.HardMaxMessageSize + 1 },
			wantErr: []string{"max message size"},
		},
		{
			name: "all_problems_joined",
			mutate: func(c *ServerConfig) {
				c.Address = "nope"
				c.ReadTimeout = -1
				c.WriteTimeout = -1
			},
			wantErr: []string{"address", "read timeout", "write timeout"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tc.mutate(cfg)
			err := cfg.ValidateConfig()

			if len(tc.wantErr) == 0 {
				if err != nil {
					t.Errorf("ValidateConfig() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateConfig() = nil, want error")
			}
			for _, want := range tc.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(nil, &ServerConfig{})
	cfg := s.Config()

	if cfg.Address != ":8080" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if cfg.SendBufferSize != 1024 {
		t.Errorf("SendBufferSize = %d", cfg.SendBufferSize)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if s.Logger() == nil {
		t.Error("Logger() is nil")
	}
	if s.Addr() != nil {
		t.Error("Addr() before Serve should be nil")
	}
}
