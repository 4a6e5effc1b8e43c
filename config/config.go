// Package config loads the pbgatt daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rigado/pbgatt"
	"github.com/rigado/pbgatt/ipc"
	"gopkg.in/yaml.v3"
)

// Config holds all daemon configuration.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	MTU         uint16            `yaml:"mtu"`
	SendQueue   int               `yaml:"send_queue"`
	Retry       RetryConfig       `yaml:"retry"`
	IPC         IPCConfig         `yaml:"ipc"`
	Advertising AdvertisingConfig `yaml:"advertising"`
	Trace       TraceConfig       `yaml:"trace"`
}

// RetryConfig bounds notification retries while the stack is busy.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

// IPCConfig selects how the bearer reaches the provisioning stack.
type IPCConfig struct {
	Transport string        `yaml:"transport"` // "serial" or "socket"
	Port      string        `yaml:"port"`
	Baud      uint          `yaml:"baud"`
	Network   string        `yaml:"network"` // "tcp" or "unix"
	Address   string        `yaml:"address"`
	Timeout   time.Duration `yaml:"timeout"`
	Codec     string        `yaml:"codec"` // "proto" or "json"
}

// AdvertisingConfig holds the unprovisioned device beacon.
type AdvertisingConfig struct {
	Name       string `yaml:"name"`
	DeviceUUID string `yaml:"device_uuid"` // random per run when empty
	OOBInfo    uint16 `yaml:"oob_info"`
}

// TraceConfig holds event trace settings.
type TraceConfig struct {
	Path string `yaml:"path"` // no trace when empty
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join("/etc", "pbgatt", "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		MTU:       pbgatt.DefaultMTU,
		SendQueue: 16,
		Retry: RetryConfig{
			MaxAttempts: pbgatt.DefaultRetryPolicy.MaxAttempts,
			Backoff:     pbgatt.DefaultRetryPolicy.Backoff,
			MaxBackoff:  pbgatt.DefaultRetryPolicy.MaxBackoff,
		},
		IPC: IPCConfig{
			Transport: "serial",
			Port:      "/dev/ttyS1",
			Baud:      115200,
			Network:   "tcp",
			Address:   "127.0.0.1:7700",
			Timeout:   time.Second,
			Codec:     ipc.ProtoCodec.Name(),
		},
		Advertising: AdvertisingConfig{
			Name: "pbgatt",
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. A leading ~ in ipc.port and trace.path is expanded to
// the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.IPC.Port = expandTilde(cfg.IPC.Port)
	cfg.Trace.Path = expandTilde(cfg.Trace.Path)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be trace, debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.MTU < pbgatt.MinMTU || c.MTU > pbgatt.MaxMTU {
		return fmt.Errorf("mtu must be in [%v, %v], got %v", pbgatt.MinMTU, pbgatt.MaxMTU, c.MTU)
	}

	if c.SendQueue < 1 {
		return fmt.Errorf("send_queue must be > 0")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.Backoff < 0 || c.Retry.MaxBackoff < c.Retry.Backoff {
		return fmt.Errorf("retry.backoff must be >= 0 and <= retry.max_backoff")
	}

	switch c.IPC.Transport {
	case "serial":
		if c.IPC.Port == "" {
			return fmt.Errorf("ipc.port must not be empty")
		}
		if c.IPC.Baud == 0 {
			return fmt.Errorf("ipc.baud must be > 0")
		}
	case "socket":
		switch c.IPC.Network {
		case "tcp", "unix":
		default:
			return fmt.Errorf("ipc.network must be \"tcp\" or \"unix\", got %q", c.IPC.Network)
		}
		if c.IPC.Address == "" {
			return fmt.Errorf("ipc.address must not be empty")
		}
	default:
		return fmt.Errorf("ipc.transport must be \"serial\" or \"socket\", got %q", c.IPC.Transport)
	}

	if _, err := ipc.CodecByName(c.IPC.Codec); err != nil {
		return fmt.Errorf("ipc.codec must be \"proto\" or \"json\", got %q", c.IPC.Codec)
	}

	if c.Advertising.DeviceUUID != "" {
		if _, err := uuid.Parse(c.Advertising.DeviceUUID); err != nil {
			return fmt.Errorf("advertising.device_uuid: %w", err)
		}
	}

	return nil
}

// RetryPolicy returns the retry settings as a pbgatt.RetryPolicy.
func (c *Config) RetryPolicy() pbgatt.RetryPolicy {
	return pbgatt.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		Backoff:     c.Retry.Backoff,
		MaxBackoff:  c.Retry.MaxBackoff,
	}
}

// Options returns the bearer options described by the config.
func (c *Config) Options() []pbgatt.Option {
	return []pbgatt.Option{
		pbgatt.OptMTU(c.MTU),
		pbgatt.OptRetryPolicy(c.RetryPolicy()),
		pbgatt.OptSendQueueSize(c.SendQueue),
	}
}

// Beacon returns the unprovisioned device beacon to advertise.
func (c *Config) Beacon() (pbgatt.Beacon, error) {
	b := pbgatt.Beacon{OOBInfo: c.Advertising.OOBInfo}
	if c.Advertising.DeviceUUID == "" {
		b.DeviceUUID = uuid.New()
		return b, nil
	}

	u, err := uuid.Parse(c.Advertising.DeviceUUID)
	if err != nil {
		return b, fmt.Errorf("advertising.device_uuid: %w", err)
	}
	b.DeviceUUID = u
	return b, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
