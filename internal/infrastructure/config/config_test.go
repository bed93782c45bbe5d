package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
bridge:
  id: "bridge-test"
  devices_file: "/etc/noolite/devices.yaml"
adapter:
  port: "/dev/ttyUSB0"
  delay_ms: 250
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 2
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "bridge-test" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "bridge-test")
	}
	if cfg.Adapter.Port != "/dev/ttyUSB0" {
		t.Errorf("Adapter.Port = %q, want %q", cfg.Adapter.Port, "/dev/ttyUSB0")
	}
	if cfg.GetAdapterDelay() != 250*time.Millisecond {
		t.Errorf("GetAdapterDelay() = %v, want 250ms", cfg.GetAdapterDelay())
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.QoS != 2 {
		t.Errorf("MQTT.QoS = %d, want 2", cfg.MQTT.QoS)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "adapter:\n  mock: true\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Adapter.BaudRate != 9600 {
		t.Errorf("Adapter.BaudRate = %d, want 9600", cfg.Adapter.BaudRate)
	}
	if cfg.Adapter.TxMode != "txf" {
		t.Errorf("Adapter.TxMode = %q, want txf", cfg.Adapter.TxMode)
	}
	if !cfg.Bridge.LegacyAutomation {
		t.Error("Bridge.LegacyAutomation = false, want true by default")
	}
	if cfg.Bridge.PollOnStart {
		t.Error("Bridge.PollOnStart = true, want false by default")
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT.QoS = %d, want 1", cfg.MQTT.QoS)
	}
	if cfg.GetHealthInterval() != 30*time.Second {
		t.Errorf("GetHealthInterval() = %v, want 30s", cfg.GetHealthInterval())
	}
	if cfg.GetJournalRetention() != 7*24*time.Hour {
		t.Errorf("GetJournalRetention() = %v, want 168h", cfg.GetJournalRetention())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
adapter:
  port: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for missing adapter.port, got nil")
	}
	if !strings.Contains(err.Error(), "adapter.port") {
		t.Errorf("error = %v, want mention of adapter.port", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NOOLITE_ADAPTER_PORT", "/dev/ttyACM3")
	t.Setenv("NOOLITE_MQTT_HOST", "mqtt.example")
	t.Setenv("NOOLITE_MQTT_PASSWORD", "s3cret")
	t.Setenv("NOOLITE_ADAPTER_DELAY_MS", "40")

	cfg, err := Load(writeConfig(t, "adapter:\n  port: /dev/ttyUSB0\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Adapter.Port != "/dev/ttyACM3" {
		t.Errorf("Adapter.Port = %q, want env override", cfg.Adapter.Port)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Auth.Password != "s3cret" {
		t.Error("MQTT.Auth.Password not overridden from environment")
	}
	if cfg.Adapter.DelayMs != 40 {
		t.Errorf("Adapter.DelayMs = %d, want 40", cfg.Adapter.DelayMs)
	}
}

func TestMQTTAuthConfig_StringRedactsPassword(t *testing.T) {
	auth := MQTTAuthConfig{Username: "bridge", Password: "hunter2"}

	s := auth.String()
	if strings.Contains(s, "hunter2") {
		t.Errorf("String() leaked password: %s", s)
	}
	if !strings.Contains(s, "[REDACTED]") {
		t.Errorf("String() = %s, want redaction marker", s)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Adapter.Port = "/dev/ttyUSB0"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:   "mock adapter needs no port",
			mutate: func(c *Config) { c.Adapter.Port = ""; c.Adapter.Mock = true },
		},
		{
			name:    "missing bridge id",
			mutate:  func(c *Config) { c.Bridge.ID = "" },
			wantErr: "bridge.id",
		},
		{
			name:    "missing devices file",
			mutate:  func(c *Config) { c.Bridge.DevicesFile = "" },
			wantErr: "bridge.devices_file",
		},
		{
			name:    "negative delay",
			mutate:  func(c *Config) { c.Adapter.DelayMs = -1 },
			wantErr: "adapter.delay_ms",
		},
		{
			name:    "unknown tx mode",
			mutate:  func(c *Config) { c.Adapter.TxMode = "rx" },
			wantErr: "adapter.tx_mode",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid broker port",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 0 },
			wantErr: "mqtt.broker.port",
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "b" },
			wantErr: "influxdb.url",
		},
		{
			name:    "journal enabled without retention",
			mutate:  func(c *Config) { c.Database.Enabled = true; c.Database.JournalRetentionDays = 0 },
			wantErr: "database.journal_retention_days",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Bridge.ID = ""
	cfg.MQTT.QoS = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "bridge.id") || !strings.Contains(err.Error(), "mqtt.qos") || !strings.Contains(err.Error(), "adapter.port") {
		t.Errorf("Validate() error = %v, want all problems joined", err)
	}
}
