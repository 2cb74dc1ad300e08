package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the RNet bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	RNet     RNetConfig     `yaml:"rnet"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BridgeConfig contains MQTT bridge behaviour settings.
type BridgeConfig struct {
	// ID identifies this bridge in health messages.
	ID string `yaml:"id"`

	// HealthInterval is how often health is republished (seconds).
	HealthInterval int `yaml:"health_interval"`

	// RefreshInterval is how often every zone is re-queried (seconds).
	// 0 disables periodic refresh.
	RefreshInterval int `yaml:"refresh_interval"`

	// QueryRate is the maximum zone-info queries per second during a refresh.
	QueryRate float64 `yaml:"query_rate"`
}

// RNetConfig contains the controller connection and zone layout.
type RNetConfig struct {
	// Connection is "/tcp/<host>:<port>" or a serial device path.
	Connection string `yaml:"connection"`

	// RetryDelay is the delay before reconnecting (seconds).
	RetryDelay int `yaml:"retry_delay"`

	// ConnectTimeout bounds a TCP dial (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`

	// WriteTimeout bounds a TCP write (seconds).
	WriteTimeout int `yaml:"write_timeout"`

	// SerialBaud is the serial line rate.
	SerialBaud int `yaml:"serial_baud"`

	// Zones lists the zones to register and refresh.
	Zones []ZoneConfig `yaml:"zones"`
}

// ZoneConfig names one controller zone.
type ZoneConfig struct {
	Controller int    `yaml:"controller"`
	Zone       int    `yaml:"zone"`
	Name       string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RNETBRIDGE_SECTION_KEY
// For example: RNETBRIDGE_RNET_CONNECTION, RNETBRIDGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults and no zones.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "rnet-bridge-01",
			HealthInterval: 30,
			QueryRate:      5,
		},
		RNet: RNetConfig{
			RetryDelay:     10,
			ConnectTimeout: 10,
			WriteTimeout:   5,
			SerialBaud:     19200,
		},
		Database: DatabaseConfig{
			Path:        "./data/rnetbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "rnet-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				MaxSize:    100,
				MaxBackups: 5,
				MaxAge:     30,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RNETBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// RNet
	if v := os.Getenv("RNETBRIDGE_RNET_CONNECTION"); v != "" {
		cfg.RNet.Connection = v
	}
	if v := os.Getenv("RNETBRIDGE_RNET_RETRY_DELAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RNet.RetryDelay = n
		}
	}

	// Database
	if v := os.Getenv("RNETBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("RNETBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RNETBRIDGE_MQTT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = n
		}
	}
	if v := os.Getenv("RNETBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RNETBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("RNETBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Logging
	if v := os.Getenv("RNETBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Address limits for zone entries; mirrors the RNet wire range.
const (
	minZoneAddress = 1
	maxZoneAddress = 128
)

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.RefreshInterval < 0 {
		errs = append(errs, "bridge.refresh_interval must not be negative")
	}
	if c.Bridge.QueryRate <= 0 {
		errs = append(errs, "bridge.query_rate must be positive")
	}

	// The connection string itself is parsed by the rnet package; only
	// presence is checked here.
	if strings.TrimSpace(c.RNet.Connection) == "" {
		errs = append(errs, "rnet.connection is required (set RNETBRIDGE_RNET_CONNECTION)")
	}
	if c.RNet.RetryDelay < 1 {
		errs = append(errs, "rnet.retry_delay must be at least 1 second")
	}

	seen := make(map[[2]int]bool, len(c.RNet.Zones))
	for i, z := range c.RNet.Zones {
		if z.Controller < minZoneAddress || z.Controller > maxZoneAddress ||
			z.Zone < minZoneAddress || z.Zone > maxZoneAddress {
			errs = append(errs, fmt.Sprintf("rnet.zones[%d]: controller and zone must be %d-%d",
				i, minZoneAddress, maxZoneAddress))
			continue
		}
		key := [2]int{z.Controller, z.Zone}
		if seen[key] {
			errs = append(errs, fmt.Sprintf("rnet.zones[%d]: duplicate zone %d:%d", i, z.Controller, z.Zone))
		}
		seen[key] = true
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRetryDelay returns the RNet reconnect delay as a Duration.
func (c *Config) GetRetryDelay() time.Duration {
	return time.Duration(c.RNet.RetryDelay) * time.Second
}

// GetConnectTimeout returns the RNet dial timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.RNet.ConnectTimeout) * time.Second
}

// GetRNetWriteTimeout returns the RNet write timeout as a Duration.
func (c *Config) GetRNetWriteTimeout() time.Duration {
	return time.Duration(c.RNet.WriteTimeout) * time.Second
}

// GetHealthInterval returns the bridge health interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetRefreshInterval returns the periodic refresh interval; zero disables it.
func (c *Config) GetRefreshInterval() time.Duration {
	return time.Duration(c.Bridge.RefreshInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
