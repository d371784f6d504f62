package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	// StoreBackendMQTT reads playlists and assignments from retained MQTT documents.
	StoreBackendMQTT = "mqtt"

	// StoreBackendFile plays a single local playlist file with no broker.
	StoreBackendFile = "file"
)

// Config is the root configuration structure for the Gray Signage player.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Player    PlayerConfig    `yaml:"player"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Kiosk     KioskConfig     `yaml:"kiosk"`
}

// PlayerConfig contains scheduling and liveness settings for the player.
type PlayerConfig struct {
	// Timezone is the IANA zone used for weekday and time-window evaluation.
	// Empty means the host's local zone.
	Timezone string `yaml:"timezone"`

	// DefaultDuration is the display time in seconds for items without one.
	DefaultDuration int `yaml:"default_duration"`

	// IdleRecheck is how often (seconds) an idle player re-evaluates its playlist.
	IdleRecheck int `yaml:"idle_recheck"`

	// HeartbeatInterval is how often (seconds) the registration is republished.
	HeartbeatInterval int `yaml:"heartbeat_interval"`

	// OnlineWindow is how long (seconds) after lastSeen a device counts as online.
	OnlineWindow int `yaml:"online_window"`

	// ResubscribeInterval is how often (seconds) failed subscriptions are retried.
	ResubscribeInterval int `yaml:"resubscribe_interval"`
}

// StoreConfig selects where playlists come from.
type StoreConfig struct {
	Backend string `yaml:"backend"`

	// PlaylistFile is the YAML playlist played by the file backend.
	PlaylistFile string `yaml:"playlist_file"`

	// LocationID is the location the file backend assigns the device to.
	LocationID string `yaml:"location_id"`
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
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`

	// ClientID defaults to "graysignage-<device id>" when empty.
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains the renderer feed HTTP server settings.
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

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// KioskConfig controls the optional supervised renderer process
// (typically a browser in kiosk mode pointed at the renderer feed).
type KioskConfig struct {
	Enabled bool `yaml:"enabled"`

	// Binary is the renderer executable, e.g. "/usr/bin/chromium".
	Binary string `yaml:"binary"`

	// Args are passed to the binary. "{url}" is replaced by the feed URL.
	Args []string `yaml:"args"`

	// RestartDelaySeconds is the pause before restarting a crashed renderer.
	RestartDelaySeconds int `yaml:"restart_delay_seconds"`

	// MaxRestartAttempts limits restarts. 0 means unlimited.
	MaxRestartAttempts int `yaml:"max_restart_attempts"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYSIGNAGE_SECTION_KEY
// For example: GRAYSIGNAGE_DATABASE_PATH, GRAYSIGNAGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Player: PlayerConfig{
			DefaultDuration:     10,
			IdleRecheck:         10,
			HeartbeatInterval:   30,
			OnlineWindow:        60,
			ResubscribeInterval: 10,
		},
		Store: StoreConfig{
			Backend: StoreBackendMQTT,
		},
		Database: DatabaseConfig{
			Path:        "./data/graysignage.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Kiosk: KioskConfig{
			RestartDelaySeconds: 5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYSIGNAGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYSIGNAGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYSIGNAGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYSIGNAGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYSIGNAGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYSIGNAGE_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("GRAYSIGNAGE_PLAYER_TIMEZONE"); v != "" {
		cfg.Player.Timezone = v
	}

	if v := os.Getenv("GRAYSIGNAGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Player.Timezone != "" {
		if _, err := time.LoadLocation(c.Player.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("player.timezone %q is not a valid IANA zone", c.Player.Timezone))
		}
	}
	if c.Player.DefaultDuration < 1 {
		errs = append(errs, "player.default_duration must be at least 1 second")
	}
	if c.Player.HeartbeatInterval < 1 {
		errs = append(errs, "player.heartbeat_interval must be at least 1 second")
	}
	if c.Player.OnlineWindow <= c.Player.HeartbeatInterval {
		errs = append(errs, "player.online_window must be longer than player.heartbeat_interval")
	}

	switch c.Store.Backend {
	case StoreBackendMQTT:
	case StoreBackendFile:
		if c.Store.PlaylistFile == "" {
			errs = append(errs, "store.playlist_file is required for the file backend")
		}
		if c.Store.LocationID == "" {
			errs = append(errs, "store.location_id is required for the file backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.backend must be %q or %q", StoreBackendMQTT, StoreBackendFile))
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

	if c.Kiosk.Enabled && c.Kiosk.Binary == "" {
		errs = append(errs, "kiosk.binary is required when kiosk is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the time zone used for schedule evaluation.
// Validate has already rejected unknown zones, so failures fall back to Local.
func (c *Config) Location() *time.Location {
	if c.Player.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Player.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Seconds converts a whole-second config value to a Duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
