package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
bridge:
  id: "test-bridge"
  refresh_interval: 300
rnet:
  connection: "/tcp/192.168.1.50:9999"
  retry_delay: 15
  zones:
    - controller: 1
      zone: 1
      name: "Kitchen"
    - controller: 1
      zone: 2
      name: "Lounge"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  port: 8090
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "test-bridge" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "test-bridge")
	}
	if cfg.RNet.Connection != "/tcp/192.168.1.50:9999" {
		t.Errorf("RNet.Connection = %q", cfg.RNet.Connection)
	}
	if cfg.GetRetryDelay() != 15*time.Second {
		t.Errorf("GetRetryDelay() = %v, want 15s", cfg.GetRetryDelay())
	}
	if cfg.GetRefreshInterval() != 5*time.Minute {
		t.Errorf("GetRefreshInterval() = %v, want 5m", cfg.GetRefreshInterval())
	}
	if len(cfg.RNet.Zones) != 2 || cfg.RNet.Zones[1].Name != "Lounge" {
		t.Errorf("RNet.Zones = %+v, want Kitchen and Lounge", cfg.RNet.Zones)
	}

	// Unset keys keep their defaults.
	if cfg.RNet.SerialBaud != 19200 {
		t.Errorf("RNet.SerialBaud = %d, want default 19200", cfg.RNet.SerialBaud)
	}
	if cfg.Bridge.HealthInterval != 30 {
		t.Errorf("Bridge.HealthInterval = %d, want default 30", cfg.Bridge.HealthInterval)
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
rnet:
  connection: ""
database:
  path: "/tmp/test.db"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty rnet.connection, got nil")
	}
}

func TestLoad_EnvConnection(t *testing.T) {
	t.Setenv("RNETBRIDGE_RNET_CONNECTION", "/dev/ttyUSB1")

	cfg, err := Load(writeConfig(t, "bridge:\n  id: env-test\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RNet.Connection != "/dev/ttyUSB1" {
		t.Errorf("RNet.Connection = %q, want %q", cfg.RNet.Connection, "/dev/ttyUSB1")
	}
}

func validConfig() *Config {
	cfg := Default()
	cfg.RNet.Connection = "/dev/ttyUSB0"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing bridge ID", mutate: func(c *Config) { c.Bridge.ID = "" }, wantErr: true},
		{name: "missing connection", mutate: func(c *Config) { c.RNet.Connection = " " }, wantErr: true},
		{name: "zero retry delay", mutate: func(c *Config) { c.RNet.RetryDelay = 0 }, wantErr: true},
		{name: "negative refresh", mutate: func(c *Config) { c.Bridge.RefreshInterval = -1 }, wantErr: true},
		{name: "zero query rate", mutate: func(c *Config) { c.Bridge.QueryRate = 0 }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{
			name: "port ignored when API disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
		},
		{
			name: "zone out of range",
			mutate: func(c *Config) {
				c.RNet.Zones = []ZoneConfig{{Controller: 0, Zone: 1}}
			},
			wantErr: true,
		},
		{
			name: "duplicate zone",
			mutate: func(c *Config) {
				c.RNet.Zones = []ZoneConfig{{Controller: 1, Zone: 1}, {Controller: 1, Zone: 1}}
			},
			wantErr: true,
		},
		{
			name: "distinct zones",
			mutate: func(c *Config) {
				c.RNet.Zones = []ZoneConfig{{Controller: 1, Zone: 1}, {Controller: 2, Zone: 1}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		RNet: RNetConfig{ConnectTimeout: 7, WriteTimeout: 3},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetConnectTimeout().Seconds(); got != 7 {
		t.Errorf("GetConnectTimeout() = %v, want 7", got)
	}
	if got := cfg.GetRNetWriteTimeout().Seconds(); got != 3 {
		t.Errorf("GetRNetWriteTimeout() = %v, want 3", got)
	}
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("RNETBRIDGE_RNET_CONNECTION", "/tcp/10.0.0.5:4001")
	t.Setenv("RNETBRIDGE_RNET_RETRY_DELAY", "20")
	t.Setenv("RNETBRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("RNETBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("RNETBRIDGE_MQTT_PORT", "8883")
	t.Setenv("RNETBRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("RNETBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("RNETBRIDGE_API_HOST", "192.168.1.1")
	t.Setenv("RNETBRIDGE_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.RNet.Connection != "/tcp/10.0.0.5:4001" {
		t.Errorf("RNet.Connection = %q", cfg.RNet.Connection)
	}
	if cfg.RNet.RetryDelay != 20 {
		t.Errorf("RNet.RetryDelay = %d, want 20", cfg.RNet.RetryDelay)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_IgnoresBadNumbers(t *testing.T) {
	cfg := Default()
	t.Setenv("RNETBRIDGE_RNET_RETRY_DELAY", "soon")

	applyEnvOverrides(cfg)

	if cfg.RNet.RetryDelay != 10 {
		t.Errorf("RNet.RetryDelay = %d, want default 10", cfg.RNet.RetryDelay)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Bridge.ID == "" {
		t.Error("Default should have non-empty Bridge.ID")
	}
	if cfg.Database.Path == "" {
		t.Error("Default should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("Default MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.RNet.RetryDelay != 10 {
		t.Errorf("Default RNet.RetryDelay = %d, want 10", cfg.RNet.RetryDelay)
	}
	if cfg.RNet.Connection != "" {
		t.Errorf("Default RNet.Connection = %q, want empty", cfg.RNet.Connection)
	}
}

// TestLoad_ExampleConfig keeps configs/config.yaml loadable.
func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv("RNETBRIDGE_RNET_CONNECTION", "")

	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RNet.Connection != "/tcp/192.168.1.50:9999" {
		t.Errorf("RNet.Connection = %q", cfg.RNet.Connection)
	}
	if len(cfg.RNet.Zones) != 4 || cfg.RNet.Zones[0].Name != "Kitchen" {
		t.Errorf("RNet.Zones = %+v", cfg.RNet.Zones)
	}
	if !cfg.API.Enabled || cfg.API.Port != 8090 {
		t.Errorf("API = %+v", cfg.API)
	}
}
