package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Hue             HueConfig        `yaml:"hue"`
	Engine          EngineConfig     `yaml:"engine"`
	Database        DatabaseConfig   `yaml:"database"`
	Log             LogConfig        `yaml:"log"`
	EventBus        EventBusConfig   `yaml:"eventbus"`
	API             APIConfig        `yaml:"api"`
	MQTT            MQTTConfig       `yaml:"mqtt"`
	Influx          InfluxConfig     `yaml:"influx"`
	Scripts         ScriptsConfig    `yaml:"scripts"`
	Ledger          LedgerConfig     `yaml:"ledger"`
	Schedules       []ScheduleConfig `yaml:"schedules"`
	Resume          bool             `yaml:"resume"`           // Restart the last animation on boot
	ShutdownTimeout Duration         `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// Transport kinds
const (
	TransportBridge = "bridge"
	TransportMemory = "memory"
)

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Bridge       string   `yaml:"bridge"`
	Token        string   `yaml:"token"`
	Timeout      Duration `yaml:"timeout"`        // HTTP timeout for Hue API requests
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // State writes per second
	Transport    string   `yaml:"transport"`      // bridge (default) or memory
}

// EngineConfig tunes the run loop
type EngineConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
	QueueSize    int      `yaml:"queue_size"`
	RetryDelay   Duration `yaml:"retry_delay"` // Wait after a failed light snapshot
	Seed         uint64   `yaml:"seed"`        // 0 = seed from the clock
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 256)
}

// APIConfig contains HTTP control API settings
type APIConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Addr returns host:port for the listener
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MQTTConfig contains MQTT control settings
type MQTTConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Broker         string `yaml:"broker"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	ClientIDPrefix string `yaml:"client_id_prefix"`
	TopicPrefix    string `yaml:"topic_prefix"`
	QoS            byte   `yaml:"qos"`
}

// InfluxConfig contains frame history settings
type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// ScriptsConfig contains Lua animation settings
type ScriptsConfig struct {
	Dir string `yaml:"dir"`
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	Enabled           bool     `yaml:"enabled"`
	RetentionPeriod   Duration `yaml:"retention_period"`
	RetentionInterval Duration `yaml:"retention_interval"`
}

// ScheduleConfig submits a command at a time of day or on an interval.
// Command uses the interactive command syntax, e.g. "rainbow 30".
type ScheduleConfig struct {
	ID      string   `yaml:"id"`
	At      string   `yaml:"at"`    // HH:MM, daily
	Every   Duration `yaml:"every"` // periodic
	Command string   `yaml:"command"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse expands environment variables in data, unmarshals it and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./huemotion.sqlite"
	}
	if cfg.Scripts.Dir == "" {
		cfg.Scripts.Dir = "./scripts"
	}

	// Hue defaults
	if cfg.Hue.Transport == "" {
		cfg.Hue.Transport = TransportBridge
	}
	if cfg.Hue.Timeout == 0 {
		cfg.Hue.Timeout = Duration(10 * time.Second)
	}
	if cfg.Hue.RateLimitRPS == 0 {
		cfg.Hue.RateLimitRPS = 10.0 // bridge guidance: ~10 light commands per second
	}

	// Engine defaults
	if cfg.Engine.PollInterval == 0 {
		cfg.Engine.PollInterval = Duration(5 * time.Millisecond)
	}
	if cfg.Engine.QueueSize == 0 {
		cfg.Engine.QueueSize = 64
	}
	if cfg.Engine.RetryDelay == 0 {
		cfg.Engine.RetryDelay = cfg.Engine.PollInterval
	}

	// API defaults
	if cfg.API.Host == "" {
		cfg.API.Host = "0.0.0.0"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}

	// MQTT defaults
	if cfg.MQTT.ClientIDPrefix == "" {
		cfg.MQTT.ClientIDPrefix = "huemotion"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "huemotion"
	}

	// Ledger defaults
	if cfg.Ledger.RetentionPeriod == 0 {
		cfg.Ledger.RetentionPeriod = Duration(30 * 24 * time.Hour)
	}
	if cfg.Ledger.RetentionInterval == 0 {
		cfg.Ledger.RetentionInterval = Duration(24 * time.Hour)
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks settings that have no sensible default.
func (cfg *Config) Validate() error {
	switch cfg.Hue.Transport {
	case TransportBridge:
		if cfg.Hue.Bridge == "" {
			return fmt.Errorf("hue.bridge is required for the bridge transport")
		}
	case TransportMemory:
	default:
		return fmt.Errorf("unknown hue.transport %q", cfg.Hue.Transport)
	}

	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if cfg.Influx.Enabled && (cfg.Influx.URL == "" || cfg.Influx.Bucket == "") {
		return fmt.Errorf("influx.url and influx.bucket are required when influx is enabled")
	}

	seen := make(map[string]bool, len(cfg.Schedules))
	for i, s := range cfg.Schedules {
		if s.ID == "" {
			return fmt.Errorf("schedules[%d]: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("schedules[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		if (s.At == "") == (s.Every == 0) {
			return fmt.Errorf("schedule %s: exactly one of at or every is required", s.ID)
		}
		if s.Every < 0 {
			return fmt.Errorf("schedule %s: negative interval", s.ID)
		}
		if strings.TrimSpace(s.Command) == "" {
			return fmt.Errorf("schedule %s: command is required", s.ID)
		}
	}
	return nil
}

// GetLevel returns the log level
func (c *LogConfig) GetLevel() string {
	return c.Level
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 256
	}
	return c.QueueSize
}

// GetShutdownTimeout returns the graceful shutdown timeout
func (cfg *Config) GetShutdownTimeout() time.Duration {
	return cfg.ShutdownTimeout.Duration()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
