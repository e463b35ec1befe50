// Package config provides configuration management for nodeagent.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultRPCPort is the preferred control port (0x1337).
	DefaultRPCPort = 4919
	// DefaultBindAddr is the data-plane listen address.
	DefaultBindAddr = "0.0.0.0:11204"
	// EnvDataDir overrides the data directory from the config file and flags.
	EnvDataDir = "NODEAGENT_DATA_DIR"
)

// Config is the root configuration structure.
type Config struct {
	DataDir           string             `json:"DataDir"`
	BindAddr          string             `json:"BindAddr"`
	RPCPort           int                `json:"RPCPort"`
	RequestToken      string             `json:"RequestToken"` // "", "random" or a base32 token
	EphemeralIdentity bool               `json:"EphemeralIdentity"`
	Relay             RelayConfig        `json:"Relay"`
	MetricsAddr       string             `json:"MetricsAddr"`
	ShutdownTimeout   time.Duration      `json:"ShutdownTimeout"`
	SOCKSProxy        SOCKSConfig        `json:"SocksProxy"`
	StatusMirror      StatusMirrorConfig `json:"StatusMirror"`
	Events            EventsConfig       `json:"Events"`
}

// RelayConfig selects how the node reaches peers it cannot dial directly.
type RelayConfig struct {
	Mode string   `json:"Mode"` // "default", "disabled" or "custom"
	URLs []string `json:"URLs"`
}

// SOCKSConfig contains SOCKS5 proxy settings used for outbound connections.
type SOCKSConfig struct {
	Host string `json:"Host"`
	Port int    `json:"Port"`
}

// StatusMirrorConfig controls publishing the run status to Redis.
type StatusMirrorConfig struct {
	Enabled   bool   `json:"Enabled"`
	Address   string `json:"Address"`
	Password  string `json:"Password"`
	DB        int    `json:"DB"`
	KeyPrefix string `json:"KeyPrefix"`
}

// EventsConfig selects where session lifecycle events go.
type EventsConfig struct {
	Type  string          `json:"Type"` // "none", "file" or "kafka"
	File  EventFileConfig `json:"File"`
	Kafka KafkaConfig     `json:"Kafka"`
}

// EventFileConfig contains settings for the file event sink.
type EventFileConfig struct {
	FilePath   string `json:"FilePath"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
}

// KafkaConfig contains Kafka connection settings for the kafka event sink.
type KafkaConfig struct {
	Brokers        []string      `json:"Brokers"`
	Topic          string        `json:"Topic"`
	Compression    string        `json:"Compression"`
	RequiredAcks   int           `json:"RequiredAcks"`
	MaxRetries     int           `json:"MaxRetries"`
	RetryBackoff   time.Duration `json:"RetryBackoff"`
	FlushFrequency time.Duration `json:"FlushFrequency"`
	Timeout        time.Duration `json:"Timeout"`
	SASLEnabled    bool          `json:"SASLEnabled"`
	SASLMechanism  string        `json:"SASLMechanism"`
	SASLUser       string        `json:"SASLUser"`
	SASLPassword   string        `json:"SASLPassword"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BindAddr:        DefaultBindAddr,
		RPCPort:         DefaultRPCPort,
		ShutdownTimeout: 10 * time.Second,
		Relay: RelayConfig{
			Mode: "default",
		},
		StatusMirror: StatusMirrorConfig{
			Address:   "localhost:6379",
			KeyPrefix: "NODEAGENT_RPC",
		},
		Events: EventsConfig{
			Type: "none",
			File: EventFileConfig{
				FilePath:   "log/nodeagent/events.jsonl",
				MaxSizeMB:  10,
				MaxBackups: 3,
			},
			Kafka: KafkaConfig{
				Brokers:        []string{"localhost:9092"},
				Topic:          "nodeagent-lifecycle",
				Compression:    "snappy",
				RequiredAcks:   1,
				MaxRetries:     3,
				RetryBackoff:   100 * time.Millisecond,
				FlushFrequency: 500 * time.Millisecond,
				Timeout:        10 * time.Second,
			},
		},
	}
}

// Merge applies non-zero values from other to this config.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.BindAddr != "" {
		c.BindAddr = other.BindAddr
	}
	if other.RPCPort != 0 {
		c.RPCPort = other.RPCPort
	}
	if other.RequestToken != "" {
		c.RequestToken = other.RequestToken
	}
	c.EphemeralIdentity = other.EphemeralIdentity
	if other.Relay.Mode != "" {
		c.Relay.Mode = other.Relay.Mode
	}
	if len(other.Relay.URLs) > 0 {
		c.Relay.URLs = other.Relay.URLs
	}
	if other.MetricsAddr != "" {
		c.MetricsAddr = other.MetricsAddr
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}

	if other.SOCKSProxy.Host != "" {
		c.SOCKSProxy.Host = other.SOCKSProxy.Host
	}
	if other.SOCKSProxy.Port != 0 {
		c.SOCKSProxy.Port = other.SOCKSProxy.Port
	}

	c.StatusMirror.Enabled = other.StatusMirror.Enabled
	if other.StatusMirror.Address != "" {
		c.StatusMirror.Address = other.StatusMirror.Address
	}
	if other.StatusMirror.Password != "" {
		c.StatusMirror.Password = other.StatusMirror.Password
	}
	if other.StatusMirror.DB != 0 {
		c.StatusMirror.DB = other.StatusMirror.DB
	}
	if other.StatusMirror.KeyPrefix != "" {
		c.StatusMirror.KeyPrefix = other.StatusMirror.KeyPrefix
	}

	if other.Events.Type != "" {
		c.Events.Type = other.Events.Type
	}
	if other.Events.File.FilePath != "" {
		c.Events.File.FilePath = other.Events.File.FilePath
	}
	if other.Events.File.MaxSizeMB != 0 {
		c.Events.File.MaxSizeMB = other.Events.File.MaxSizeMB
	}
	if other.Events.File.MaxBackups != 0 {
		c.Events.File.MaxBackups = other.Events.File.MaxBackups
	}

	src, dst := other.Events.Kafka, &c.Events.Kafka
	if len(src.Brokers) > 0 {
		dst.Brokers = src.Brokers
	}
	if src.Topic != "" {
		dst.Topic = src.Topic
	}
	if src.Compression != "" {
		dst.Compression = src.Compression
	}
	if src.RequiredAcks != 0 {
		dst.RequiredAcks = src.RequiredAcks
	}
	if src.MaxRetries != 0 {
		dst.MaxRetries = src.MaxRetries
	}
	if src.RetryBackoff != 0 {
		dst.RetryBackoff = src.RetryBackoff
	}
	if src.FlushFrequency != 0 {
		dst.FlushFrequency = src.FlushFrequency
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	dst.SASLEnabled = src.SASLEnabled
	if src.SASLMechanism != "" {
		dst.SASLMechanism = src.SASLMechanism
	}
	if src.SASLUser != "" {
		dst.SASLUser = src.SASLUser
	}
	if src.SASLPassword != "" {
		dst.SASLPassword = src.SASLPassword
	}
}

// Validate checks values that would otherwise fail deep inside startup.
func (c *Config) Validate() error {
	if c.RPCPort < 0 || c.RPCPort > 65535 {
		return fmt.Errorf("RPCPort %d out of range", c.RPCPort)
	}
	if _, _, err := net.SplitHostPort(c.BindAddr); err != nil {
		return fmt.Errorf("invalid BindAddr %q: %w", c.BindAddr, err)
	}
	switch strings.ToLower(c.Relay.Mode) {
	case "", "default", "disabled":
	case "custom":
		if len(c.Relay.URLs) == 0 {
			return fmt.Errorf("relay mode %q requires at least one URL", c.Relay.Mode)
		}
	default:
		return fmt.Errorf("unknown relay mode %q (supported: default, disabled, custom)", c.Relay.Mode)
	}
	switch strings.ToLower(c.Events.Type) {
	case "", "none", "file", "kafka":
	default:
		return fmt.Errorf("unknown events type %q (supported: none, file, kafka)", c.Events.Type)
	}
	return nil
}

// ResolveDataDir returns the data root: NODEAGENT_DATA_DIR, then DataDir,
// then ~/.local/share/nodeagent.
func (c *Config) ResolveDataDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		return filepath.Abs(v)
	}
	if c.DataDir != "" {
		return filepath.Abs(c.DataDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine data directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "nodeagent"), nil
}

// GetHostname returns the system hostname or "unknown".
func GetHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
