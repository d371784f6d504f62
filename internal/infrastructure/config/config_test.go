package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
player:
  timezone: "Europe/London"
  heartbeat_interval: 30
  online_window: 60
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
  qos: 1
api:
  host: "127.0.0.1"
  port: 8090
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Player.Timezone != "Europe/London" {
		t.Errorf("Player.Timezone = %q, want %q", cfg.Player.Timezone, "Europe/London")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	// Unset keys keep their defaults
	if cfg.Player.DefaultDuration != 10 {
		t.Errorf("Player.DefaultDuration = %d, want 10", cfg.Player.DefaultDuration)
	}
	if cfg.Store.Backend != StoreBackendMQTT {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, StoreBackendMQTT)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  path: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "database.path") {
		t.Errorf("error = %v, want mention of database.path", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Player.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name:    "zero default duration",
			mutate:  func(c *Config) { c.Player.DefaultDuration = 0 },
			wantErr: true,
		},
		{
			name:    "online window not longer than heartbeat",
			mutate:  func(c *Config) { c.Player.OnlineWindow = 30 },
			wantErr: true,
		},
		{
			name:    "unknown store backend",
			mutate:  func(c *Config) { c.Store.Backend = "firestore" },
			wantErr: true,
		},
		{
			name:    "file backend without playlist file",
			mutate:  func(c *Config) { c.Store.Backend = StoreBackendFile; c.Store.LocationID = "lobby" },
			wantErr: true,
		},
		{
			name: "file backend complete",
			mutate: func(c *Config) {
				c.Store.Backend = StoreBackendFile
				c.Store.PlaylistFile = "playlist.yaml"
				c.Store.LocationID = "lobby"
			},
			wantErr: false,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "port ignored when api disabled",
			mutate:  func(c *Config) { c.API.Enabled = false; c.API.Port = 0 },
			wantErr: false,
		},
		{
			name:    "kiosk without binary",
			mutate:  func(c *Config) { c.Kiosk.Enabled = true },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Location(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Location() != time.Local {
		t.Error("Location() with empty timezone should be time.Local")
	}

	cfg.Player.Timezone = "UTC"
	if got := cfg.Location().String(); got != "UTC" {
		t.Errorf("Location() = %q, want UTC", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYSIGNAGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYSIGNAGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYSIGNAGE_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYSIGNAGE_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYSIGNAGE_STORE_BACKEND", "file")
	t.Setenv("GRAYSIGNAGE_PLAYER_TIMEZONE", "America/New_York")
	t.Setenv("GRAYSIGNAGE_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.Store.Backend != "file" {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, "file")
	}

	if cfg.Player.Timezone != "America/New_York" {
		t.Errorf("Player.Timezone = %q, want %q", cfg.Player.Timezone, "America/New_York")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Player.HeartbeatInterval != 30 {
		t.Errorf("defaultConfig Player.HeartbeatInterval = %d, want 30", cfg.Player.HeartbeatInterval)
	}

	if cfg.Player.OnlineWindow != 60 {
		t.Errorf("defaultConfig Player.OnlineWindow = %d, want 60", cfg.Player.OnlineWindow)
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestSeconds(t *testing.T) {
	if got := Seconds(30); got != 30*time.Second {
		t.Errorf("Seconds(30) = %v, want 30s", got)
	}
}
