package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the nooLite bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Adapter  AdapterConfig  `yaml:"adapter"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BridgeConfig contains bridge identity and operational settings.
type BridgeConfig struct {
	// ID identifies this bridge instance in health reports.
	ID string `yaml:"id"`

	// HealthInterval is how often to publish health status (seconds).
	HealthInterval int `yaml:"health_interval"`

	// DevicesFile is the path to the YAML device list.
	DevicesFile string `yaml:"devices_file"`

	// PublishBuffer is the capacity of the outbound publish buffer.
	// Publications beyond it are dropped rather than blocking the adapter.
	PublishBuffer int `yaml:"publish_buffer"`

	// LegacyAutomation enables the hardwired heating/ventilation rules.
	LegacyAutomation bool `yaml:"legacy_automation"`

	// PollOnStart reads every reporting switch's state at startup (txf only).
	// A switch that does not answer stops the bridge, so leave it off unless
	// every polled switch is a nooLite-F device.
	PollOnStart bool `yaml:"poll_on_start"`
}

// AdapterConfig contains MTRF-64 serial adapter settings.
type AdapterConfig struct {
	// Port is the serial device path (e.g. /dev/ttyUSB0).
	Port string `yaml:"port"`

	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`

	// DelayMs is the minimum interval between two radio transmissions.
	DelayMs int `yaml:"delay_ms"`

	// TxMode selects addressed nooLite-F ("txf") or legacy nooLite ("tx") transmission.
	TxMode string `yaml:"tx_mode"`

	// ReadTimeoutMs bounds a single serial read so the read loop can observe shutdown.
	ReadTimeoutMs int `yaml:"read_timeout_ms"`

	// Mock replaces the serial adapter with a logging-only stand-in.
	Mock bool `yaml:"mock"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// String masks the password so the struct can be logged safely.
func (a MQTTAuthConfig) String() string {
	password := ""
	if a.Password != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("MQTTAuthConfig{Username:%q, Password:%s}", a.Username, password)
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite settings for the reception journal.
type DatabaseConfig struct {
	Enabled              bool   `yaml:"enabled"`
	Path                 string `yaml:"path"`
	WALMode              bool   `yaml:"wal_mode"`
	BusyTimeout          int    `yaml:"busy_timeout"`
	JournalRetentionDays int    `yaml:"journal_retention_days"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. .env file next to the working directory, if present
//  3. YAML file values (override defaults)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: NOOLITE_SECTION_KEY
// For example: NOOLITE_ADAPTER_PORT, NOOLITE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
// Variables already set in the process environment win.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:               "noolite-bridge-01",
			HealthInterval:   30,
			DevicesFile:      "configs/devices.yaml",
			PublishBuffer:    256,
			LegacyAutomation: true,
		},
		Adapter: AdapterConfig{
			BaudRate:      9600,
			DataBits:      8,
			StopBits:      1,
			Parity:        "N",
			DelayMs:       100,
			TxMode:        "txf",
			ReadTimeoutMs: 500,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "noolite-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Database: DatabaseConfig{
			Path:                 "./data/noolite.db",
			WALMode:              true,
			BusyTimeout:          5,
			JournalRetentionDays: 7,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NOOLITE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Bridge
	if v := os.Getenv("NOOLITE_BRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}
	if v := os.Getenv("NOOLITE_DEVICES_FILE"); v != "" {
		cfg.Bridge.DevicesFile = v
	}

	// Adapter
	if v := os.Getenv("NOOLITE_ADAPTER_PORT"); v != "" {
		cfg.Adapter.Port = v
	}
	if v := os.Getenv("NOOLITE_ADAPTER_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Adapter.DelayMs = n
		}
	}
	if v := os.Getenv("NOOLITE_ADAPTER_MOCK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Adapter.Mock = b
		}
	}

	// MQTT
	if v := os.Getenv("NOOLITE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NOOLITE_MQTT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = n
		}
	}
	if v := os.Getenv("NOOLITE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NOOLITE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("NOOLITE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Database
	if v := os.Getenv("NOOLITE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Logging
	if v := os.Getenv("NOOLITE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateBridge()...)
	errs = append(errs, c.validateAdapter()...)
	errs = append(errs, c.validateMQTT()...)
	errs = append(errs, c.validateInfluxDB()...)
	errs = append(errs, c.validateDatabase()...)
	errs = append(errs, c.validateLogging()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateBridge() []string {
	var errs []string
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}
	if c.Bridge.DevicesFile == "" {
		errs = append(errs, "bridge.devices_file is required")
	}
	if c.Bridge.PublishBuffer < 1 {
		errs = append(errs, "bridge.publish_buffer must be at least 1")
	}
	return errs
}

func (c *Config) validateAdapter() []string {
	var errs []string
	if !c.Adapter.Mock && c.Adapter.Port == "" {
		errs = append(errs, "adapter.port is required (or set adapter.mock: true)")
	}
	if c.Adapter.DelayMs < 0 {
		errs = append(errs, "adapter.delay_ms must not be negative")
	}
	if c.Adapter.TxMode != "txf" && c.Adapter.TxMode != "tx" {
		errs = append(errs, fmt.Sprintf("adapter.tx_mode %q is invalid (use txf or tx)", c.Adapter.TxMode))
	}
	if c.Adapter.ReadTimeoutMs < 1 {
		errs = append(errs, "adapter.read_timeout_ms must be at least 1")
	}
	return errs
}

func (c *Config) validateMQTT() []string {
	var errs []string
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	return errs
}

func (c *Config) validateInfluxDB() []string {
	if !c.InfluxDB.Enabled {
		return nil
	}
	var errs []string
	if c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}
	if c.InfluxDB.Bucket == "" {
		errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
	}
	return errs
}

func (c *Config) validateDatabase() []string {
	if !c.Database.Enabled {
		return nil
	}
	var errs []string
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}
	if c.Database.JournalRetentionDays < 1 {
		errs = append(errs, "database.journal_retention_days must be at least 1")
	}
	return errs
}

func (c *Config) validateLogging() []string {
	var errs []string

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level %q is invalid (use debug, info, warn, or error)", c.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("logging.format %q is invalid (use json or text)", c.Logging.Format))
	}

	return errs
}

// GetHealthInterval returns the health reporting interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetAdapterDelay returns the inter-transmission delay as a Duration.
func (c *Config) GetAdapterDelay() time.Duration {
	return time.Duration(c.Adapter.DelayMs) * time.Millisecond
}

// GetAdapterReadTimeout returns the serial read timeout as a Duration.
func (c *Config) GetAdapterReadTimeout() time.Duration {
	return time.Duration(c.Adapter.ReadTimeoutMs) * time.Millisecond
}

// GetJournalRetention returns how long reception journal rows are kept.
func (c *Config) GetJournalRetention() time.Duration {
	return time.Duration(c.Database.JournalRetentionDays) * 24 * time.Hour
}
