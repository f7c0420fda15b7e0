package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Gateway operating modes.
const (
	// ModeSimulation emulates label hardware and broker connectivity in-process.
	ModeSimulation = "simulation"

	// ModeProduction talks to a real MQTT broker and real label hardware.
	ModeProduction = "production"
)

// Config is the root configuration structure for the ESL gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// GatewayConfig contains fleet-wide gateway settings.
type GatewayConfig struct {
	// Mode selects the startup transport mode: "simulation" or "production".
	// It can be switched at runtime via POST /api/mode.
	Mode string `yaml:"mode"`

	// StalenessWindow is how long a label may go unseen before it is
	// classified offline.
	StalenessWindow time.Duration `yaml:"staleness_window"`
}

// DatabaseConfig contains SQLite label catalog settings.
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// InfluxDBConfig contains InfluxDB telemetry sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SimulationConfig contains timing parameters for the simulated transport
// and the battery/freshness simulator.
type SimulationConfig struct {
	// SettleDelay is how long the simulated broker takes to "connect".
	SettleDelay time.Duration `yaml:"settle_delay"`

	// TickInterval is the period of the battery/freshness simulator.
	TickInterval time.Duration `yaml:"tick_interval"`

	// MaxBatteryDecay is the upper bound of the random per-tick battery drain.
	MaxBatteryDecay float64 `yaml:"max_battery_decay"`

	// FallbackMinDelay and FallbackMaxDelay bound the randomised latency of
	// the simulated-send fallback path used when the broker is unreachable.
	FallbackMinDelay time.Duration `yaml:"fallback_min_delay"`
	FallbackMaxDelay time.Duration `yaml:"fallback_max_delay"`
}

// UnmarshalYAML decodes duration fields from strings like "30m" or "500ms".
// yaml.v3 has no native time.Duration support. Absent fields leave the
// existing (default) values untouched.
func (g *GatewayConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Mode            string `yaml:"mode"`
		StalenessWindow string `yaml:"staleness_window"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.Mode != "" {
		g.Mode = raw.Mode
	}
	return setDuration(&g.StalenessWindow, raw.StalenessWindow, "gateway.staleness_window")
}

// UnmarshalYAML decodes duration fields from strings like "2s" or "500ms".
func (s *SimulationConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		SettleDelay      string   `yaml:"settle_delay"`
		TickInterval     string   `yaml:"tick_interval"`
		MaxBatteryDecay  *float64 `yaml:"max_battery_decay"`
		FallbackMinDelay string   `yaml:"fallback_min_delay"`
		FallbackMaxDelay string   `yaml:"fallback_max_delay"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.MaxBatteryDecay != nil {
		s.MaxBatteryDecay = *raw.MaxBatteryDecay
	}
	if err := setDuration(&s.SettleDelay, raw.SettleDelay, "simulation.settle_delay"); err != nil {
		return err
	}
	if err := setDuration(&s.TickInterval, raw.TickInterval, "simulation.tick_interval"); err != nil {
		return err
	}
	if err := setDuration(&s.FallbackMinDelay, raw.FallbackMinDelay, "simulation.fallback_min_delay"); err != nil {
		return err
	}
	return setDuration(&s.FallbackMaxDelay, raw.FallbackMaxDelay, "simulation.fallback_max_delay")
}

// setDuration parses value into dst. An empty value leaves dst untouched.
func setDuration(dst *time.Duration, value, field string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ESLGATE_SECTION_KEY
// For example: ESLGATE_DATABASE_PATH, ESLGATE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Mode:            ModeSimulation,
			StalenessWindow: time.Hour,
		},
		Database: DatabaseConfig{
			Path:        "./data/eslgate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "eslgate-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3001,
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
		},
		Simulation: SimulationConfig{
			SettleDelay:      2 * time.Second,
			TickInterval:     30 * time.Second,
			MaxBatteryDecay:  2,
			FallbackMinDelay: 500 * time.Millisecond,
			FallbackMaxDelay: 1500 * time.Millisecond,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ESLGATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Gateway
	if v := os.Getenv("ESLGATE_MODE"); v != "" {
		cfg.Gateway.Mode = v
	}

	// Database
	if v := os.Getenv("ESLGATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("ESLGATE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ESLGATE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ESLGATE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("ESLGATE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("ESLGATE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Gateway validation
	if c.Gateway.Mode != ModeSimulation && c.Gateway.Mode != ModeProduction {
		errs = append(errs, `gateway.mode must be "simulation" or "production"`)
	}
	if c.Gateway.StalenessWindow <= 0 {
		errs = append(errs, "gateway.staleness_window must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Simulation validation
	if c.Simulation.SettleDelay <= 0 {
		errs = append(errs, "simulation.settle_delay must be positive")
	}
	if c.Simulation.TickInterval <= 0 {
		errs = append(errs, "simulation.tick_interval must be positive")
	}
	if c.Simulation.MaxBatteryDecay < 0 {
		errs = append(errs, "simulation.max_battery_decay must not be negative")
	}
	if c.Simulation.FallbackMinDelay < 0 || c.Simulation.FallbackMaxDelay < c.Simulation.FallbackMinDelay {
		errs = append(errs, "simulation fallback delays must satisfy 0 <= min <= max")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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
