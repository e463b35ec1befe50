package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"nodeagent/internal/logger"
)

// rawConfig mirrors Config with durations as strings ("10s", "500ms").
type rawConfig struct {
	DataDir           string          `json:"DataDir" toml:"DataDir"`
	BindAddr          string          `json:"BindAddr" toml:"BindAddr"`
	RPCPort           int             `json:"RPCPort" toml:"RPCPort"`
	RequestToken      string          `json:"RequestToken" toml:"RequestToken"`
	EphemeralIdentity bool            `json:"EphemeralIdentity" toml:"EphemeralIdentity"`
	Relay             rawRelayConfig  `json:"Relay" toml:"Relay"`
	MetricsAddr       string          `json:"MetricsAddr" toml:"MetricsAddr"`
	ShutdownTimeout   string          `json:"ShutdownTimeout" toml:"ShutdownTimeout"`
	SOCKSProxy        rawSOCKSConfig  `json:"SocksProxy" toml:"SocksProxy"`
	StatusMirror      rawStatusMirror `json:"StatusMirror" toml:"StatusMirror"`
	Events            rawEventsConfig `json:"Events" toml:"Events"`
}

type rawRelayConfig struct {
	Mode string   `json:"Mode" toml:"Mode"`
	URLs []string `json:"URLs" toml:"URLs"`
}

type rawSOCKSConfig struct {
	Host string `json:"Host" toml:"Host"`
	Port int    `json:"Port" toml:"Port"`
}

type rawStatusMirror struct {
	Enabled   bool   `json:"Enabled" toml:"Enabled"`
	Address   string `json:"Address" toml:"Address"`
	Password  string `json:"Password" toml:"Password"`
	DB        int    `json:"DB" toml:"DB"`
	KeyPrefix string `json:"KeyPrefix" toml:"KeyPrefix"`
}

type rawEventsConfig struct {
	Type  string         `json:"Type" toml:"Type"`
	File  rawEventFile   `json:"File" toml:"File"`
	Kafka rawKafkaConfig `json:"Kafka" toml:"Kafka"`
}

type rawEventFile struct {
	FilePath   string `json:"FilePath" toml:"FilePath"`
	MaxSizeMB  int    `json:"MaxSizeMB" toml:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups" toml:"MaxBackups"`
}

type rawKafkaConfig struct {
	Brokers        []string `json:"Brokers" toml:"Brokers"`
	Topic          string   `json:"Topic" toml:"Topic"`
	Compression    string   `json:"Compression" toml:"Compression"`
	RequiredAcks   int      `json:"RequiredAcks" toml:"RequiredAcks"`
	MaxRetries     int      `json:"MaxRetries" toml:"MaxRetries"`
	RetryBackoff   string   `json:"RetryBackoff" toml:"RetryBackoff"`
	FlushFrequency string   `json:"FlushFrequency" toml:"FlushFrequency"`
	Timeout        string   `json:"Timeout" toml:"Timeout"`
	SASLEnabled    bool     `json:"SASLEnabled" toml:"SASLEnabled"`
	SASLMechanism  string   `json:"SASLMechanism" toml:"SASLMechanism"`
	SASLUser       string   `json:"SASLUser" toml:"SASLUser"`
	SASLPassword   string   `json:"SASLPassword" toml:"SASLPassword"`
}

// Load reads configuration from path. Files ending in .toml are decoded as TOML,
// everything else as JSON. An empty path yields DefaultConfig.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ParseTOML(data)
	}
	return Parse(data)
}

// Parse parses configuration from JSON bytes.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return fromRaw(&raw)
}

// ParseTOML parses configuration from TOML bytes.
func ParseTOML(data []byte) (*Config, error) {
	var raw rawConfig
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config TOML: %w", err)
	}
	return fromRaw(&raw)
}

func fromRaw(raw *rawConfig) (*Config, error) {
	parsed, err := convertRawConfig(raw)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.Merge(parsed)
	return cfg, nil
}

func convertRawConfig(raw *rawConfig) (*Config, error) {
	cfg := &Config{
		DataDir:           raw.DataDir,
		BindAddr:          raw.BindAddr,
		RPCPort:           raw.RPCPort,
		RequestToken:      raw.RequestToken,
		EphemeralIdentity: raw.EphemeralIdentity,
		Relay:             RelayConfig{Mode: raw.Relay.Mode, URLs: raw.Relay.URLs},
		MetricsAddr:       raw.MetricsAddr,
		SOCKSProxy:        SOCKSConfig{Host: raw.SOCKSProxy.Host, Port: raw.SOCKSProxy.Port},
		StatusMirror: StatusMirrorConfig{
			Enabled:   raw.StatusMirror.Enabled,
			Address:   raw.StatusMirror.Address,
			Password:  raw.StatusMirror.Password,
			DB:        raw.StatusMirror.DB,
			KeyPrefix: raw.StatusMirror.KeyPrefix,
		},
		Events: EventsConfig{
			Type: raw.Events.Type,
			File: EventFileConfig{
				FilePath:   raw.Events.File.FilePath,
				MaxSizeMB:  raw.Events.File.MaxSizeMB,
				MaxBackups: raw.Events.File.MaxBackups,
			},
		},
	}

	var err error
	if cfg.ShutdownTimeout, err = parseDuration("ShutdownTimeout", raw.ShutdownTimeout); err != nil {
		return nil, err
	}

	kafka, err := convertRawKafka(&raw.Events.Kafka)
	if err != nil {
		return nil, err
	}
	cfg.Events.Kafka = *kafka

	return cfg, nil
}

func convertRawKafka(raw *rawKafkaConfig) (*KafkaConfig, error) {
	kafka := &KafkaConfig{
		Brokers:       raw.Brokers,
		Topic:         raw.Topic,
		Compression:   raw.Compression,
		RequiredAcks:  raw.RequiredAcks,
		MaxRetries:    raw.MaxRetries,
		SASLEnabled:   raw.SASLEnabled,
		SASLMechanism: raw.SASLMechanism,
		SASLUser:      raw.SASLUser,
		SASLPassword:  raw.SASLPassword,
	}

	var err error
	if kafka.RetryBackoff, err = parseDuration("Kafka.RetryBackoff", raw.RetryBackoff); err != nil {
		return nil, err
	}
	if kafka.FlushFrequency, err = parseDuration("Kafka.FlushFrequency", raw.FlushFrequency); err != nil {
		return nil, err
	}
	if kafka.Timeout, err = parseDuration("Kafka.Timeout", raw.Timeout); err != nil {
		return nil, err
	}
	return kafka, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", field, err)
	}
	return d, nil
}

type rawLoggingConfig struct {
	Level      string `json:"Level"`
	FilePath   string `json:"FilePath"`
	Format     string `json:"Format"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	MaxAgeDays int    `json:"MaxAgeDays"`
	Compress   *bool  `json:"Compress"`
	Console    *bool  `json:"Console"`
}

// LoadLogging reads logging configuration from path. An empty path yields the defaults.
func LoadLogging(path string) (*logger.Config, error) {
	if path == "" {
		def := logger.DefaultConfig()
		return &def, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read logging config file: %w", err)
	}
	return ParseLogging(data)
}

// ParseLogging parses logging configuration from JSON bytes over the defaults.
func ParseLogging(data []byte) (*logger.Config, error) {
	var raw rawLoggingConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse logging config JSON: %w", err)
	}

	def := logger.DefaultConfig()
	if raw.Level != "" {
		def.Level = raw.Level
	}
	if raw.FilePath != "" {
		def.FilePath = raw.FilePath
	}
	if raw.Format != "" {
		def.Format = raw.Format
	}
	if raw.MaxSizeMB != 0 {
		def.MaxSizeMB = raw.MaxSizeMB
	}
	if raw.MaxBackups != 0 {
		def.MaxBackups = raw.MaxBackups
	}
	if raw.MaxAgeDays != 0 {
		def.MaxAgeDays = raw.MaxAgeDays
	}
	if raw.Compress != nil {
		def.Compress = *raw.Compress
	}
	if raw.Console != nil {
		def.Console = *raw.Console
	}
	return &def, nil
}
