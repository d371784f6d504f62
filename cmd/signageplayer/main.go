// Gray Signage Player - digital signage screen runtime
//
// This is the main entry point for a signage screen. It:
//   - Persists a device identity and announces it with a pairing code
//   - Follows its location assignment and playlist from the store
//   - Rotates playlist items on schedule, offline from cache if needed
//   - Feeds the renderer over a local HTTP/WebSocket API
//   - Optionally supervises the renderer process (kiosk browser)
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	_ "github.com/nerrad567/gray-signage/migrations"

	"github.com/nerrad567/gray-signage/internal/api"
	"github.com/nerrad567/gray-signage/internal/device"
	"github.com/nerrad567/gray-signage/internal/infrastructure/config"
	"github.com/nerrad567/gray-signage/internal/infrastructure/database"
	"github.com/nerrad567/gray-signage/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-signage/internal/infrastructure/logging"
	"github.com/nerrad567/gray-signage/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-signage/internal/kiosk"
	"github.com/nerrad567/gray-signage/internal/player"
	"github.com/nerrad567/gray-signage/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear startup sequence
	log := logging.Default(version)
	logStartup(log)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	identities := device.NewSQLiteIdentityRepository(db.DB)
	identity, created, err := device.EnsureIdentity(ctx, identities, time.Now())
	if err != nil {
		return fmt.Errorf("loading device identity: %w", err)
	}
	log.Info("device identity loaded",
		"device_id", identity.DeviceID,
		"new", created,
		"cached_location", identity.LocationID,
	)

	cache := store.NewSQLiteCache(db.DB, clock.New())
	if pruned, pruneErr := cache.Prune(ctx, identity.LocationID); pruneErr != nil {
		log.Warn("pruning playlist cache failed", "error", pruneErr)
	} else if pruned > 0 {
		log.Info("pruned stale cached playlists", "removed", pruned)
	}

	backend, err := openStore(ctx, cfg, identity, log)
	if err != nil {
		return err
	}
	defer backend.close()

	var metrics player.Metrics
	influxClient := openMetrics(cfg.InfluxDB, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		metrics = influxClient
	}

	p, err := player.New(player.Config{
		Identity:          identity,
		Identities:        identities,
		Store:             backend.store,
		Cache:             cache,
		Metrics:           metrics,
		Location:          cfg.Location(),
		DefaultDuration:   config.Seconds(cfg.Player.DefaultDuration),
		IdleRecheck:       config.Seconds(cfg.Player.IdleRecheck),
		HeartbeatInterval: config.Seconds(cfg.Player.HeartbeatInterval),
		RetryInterval:     config.Seconds(cfg.Player.ResubscribeInterval),
		Logger:            log,
	})
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}

	var feed *api.Server
	if cfg.API.Enabled {
		feed, err = api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Source:  p,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating renderer feed: %w", err)
		}
		if err := feed.Start(ctx); err != nil {
			return fmt.Errorf("starting renderer feed: %w", err)
		}
		defer func() {
			if closeErr := feed.Close(); closeErr != nil {
				log.Error("error closing renderer feed", "error", closeErr)
			}
		}()
	} else {
		log.Info("renderer feed disabled")
	}

	if cfg.Kiosk.Enabled {
		sup, err := kiosk.New(kiosk.FromConfig(cfg.Kiosk, feedURL(cfg.API)))
		if err != nil {
			return fmt.Errorf("creating kiosk supervisor: %w", err)
		}
		sup.SetLogger(log.Component("kiosk"))
		if err := sup.Start(ctx); err != nil {
			return fmt.Errorf("starting kiosk renderer: %w", err)
		}
		defer func() {
			if stopErr := sup.Stop(); stopErr != nil {
				log.Error("error stopping kiosk renderer", "error", stopErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, feed); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if degraded := checkRemotes(ctx, backend.mqtt, influxClient); len(degraded) > 0 {
		log.Warn("starting degraded, playing from cache until remotes recover", "unavailable", degraded)
	} else {
		log.Info("all health checks passed")
	}

	if backend.reload != nil {
		go reloadOnHangup(ctx, backend.reload, log)
	}

	log.Info("initialisation complete, playing")
	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("running player: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// logStartup announces the build. version is already a default field.
func logStartup(log *logging.Logger) {
	log.Info("starting Gray Signage player",
		"commit", commit,
		"build_date", date,
	)
}

// getConfigPath returns the configuration file path.
// Uses GRAYSIGNAGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYSIGNAGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// storeBackend is the opened document store and its lifecycle hooks.
type storeBackend struct {
	store  store.Store
	mqtt   *mqtt.Client // nil for the file backend
	reload func(ctx context.Context) error
	close  func()
}

// openStore connects the configured backend.
//
// Parameters:
//   - ctx: Context for the file backend's poll loop
//   - cfg: Application configuration
//   - identity: Device identity, used for the default MQTT client id
//   - log: Logger instance
//
// Returns:
//   - storeBackend: Ready store; close must be called on shutdown
//   - error: If the playlist file cannot be opened
func openStore(ctx context.Context, cfg *config.Config, identity device.Identity, log *logging.Logger) (storeBackend, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendFile:
		fs, err := store.NewFileStore(store.FileStoreConfig{
			Path:       cfg.Store.PlaylistFile,
			LocationID: cfg.Store.LocationID,
		})
		if err != nil {
			return storeBackend{}, fmt.Errorf("opening playlist file: %w", err)
		}
		fs.SetLogger(log.Component("store"))

		pollCtx, cancel := context.WithCancel(ctx)
		go fs.Run(pollCtx)
		log.Info("file store opened",
			"path", cfg.Store.PlaylistFile,
			"location_id", cfg.Store.LocationID,
		)
		return storeBackend{store: fs, reload: fs.Reload, close: cancel}, nil

	default:
		mqttCfg := cfg.MQTT
		mqttCfg.Broker.ClientID = clientID(mqttCfg.Broker.ClientID, identity.DeviceID)

		// The broker may be down at boot; the client keeps dialling and
		// the player retries its watches until the link is up.
		client := mqtt.Start(mqttCfg)
		client.SetLogger(log.Component("mqtt"))
		client.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		client.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connecting",
			"broker", net.JoinHostPort(mqttCfg.Broker.Host, strconv.Itoa(mqttCfg.Broker.Port)),
			"client_id", mqttCfg.Broker.ClientID,
		)

		ms := store.NewMQTTStore(client, store.DefaultCollectWindow)
		ms.SetLogger(log.Component("store"))
		return storeBackend{
			store: ms,
			mqtt:  client,
			close: func() {
				log.Info("disconnecting from MQTT")
				if closeErr := client.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			},
		}, nil
	}
}

// openMetrics connects to InfluxDB when enabled. An unreachable server
// disables proof-of-play recording for this run rather than failing boot.
func openMetrics(cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}

	client, err := influxdb.Connect(cfg)
	if err != nil {
		log.Warn("InfluxDB unavailable, metrics disabled", "url", cfg.URL, "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected", "url", cfg.URL, "bucket", cfg.Bucket)
	return client
}

// clientID returns configured, or "graysignage-<deviceID>" when empty.
func clientID(configured, deviceID string) string {
	if configured != "" {
		return configured
	}
	return "graysignage-" + deviceID
}

// feedURL is the page the kiosk renderer opens.
func feedURL(cfg config.APIConfig) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port)) + "/"
}

// reloadOnHangup re-reads the playlist file on SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, reload func(context.Context) error, log *logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := reload(ctx); err != nil {
				log.Warn("playlist reload failed", "error", err)
				continue
			}
			log.Info("playlist file reloaded")
		}
	}
}

// healthCheck verifies the local services the screen cannot play without.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - feed: Renderer feed to check (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, feed *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if feed != nil {
		if err := feed.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	return nil
}

// checkRemotes names the remote services that are not reachable yet.
// Either client may be nil.
func checkRemotes(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) []string {
	var degraded []string
	if mqttClient != nil && mqttClient.HealthCheck(ctx) != nil {
		degraded = append(degraded, "mqtt")
	}
	if influxClient != nil && influxClient.HealthCheck(ctx) != nil {
		degraded = append(degraded, "influxdb")
	}
	return degraded
}
