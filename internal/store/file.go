package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gray-signage/internal/playlist"
)

// DefaultPollInterval is how often FileStore checks its file for changes.
const DefaultPollInterval = 5 * time.Second

// FileStoreConfig configures a standalone store.
type FileStoreConfig struct {
	// Path of the YAML (or JSON) playlist file.
	Path string

	// LocationID every device watched through this store is assigned to.
	LocationID string

	// PollInterval between modification checks. Default: 5 seconds.
	PollInterval time.Duration

	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// FileStore serves one playlist file to a screen without a broker.
// Every watched device is treated as paired to the configured location,
// and edits to the file are picked up by Run.
type FileStore struct {
	*Memory

	path       string
	locationID string
	interval   time.Duration
	clock      clock.Clock

	mu      sync.Mutex
	modTime time.Time

	logger   Logger
	loggerMu sync.RWMutex
}

// NewFileStore loads the file once and returns the store.
//
// Returns:
//   - *FileStore: Store with the playlist published
//   - error: If the file cannot be read or decoded
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	if cfg.Path == "" || cfg.LocationID == "" {
		return nil, fmt.Errorf("%w: path and location are required", ErrInvalidArgument)
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	s := &FileStore{
		Memory:     NewMemory(),
		path:       cfg.Path,
		locationID: cfg.LocationID,
		interval:   interval,
		clock:      clk,
		logger:     noopLogger{},
	}
	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// SetLogger sets the logger.
func (s *FileStore) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *FileStore) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// WatchDevice assigns the device to the configured location and watches it.
func (s *FileStore) WatchDevice(ctx context.Context, deviceID string) (*DeviceWatch, error) {
	if err := s.Memory.Assign(ctx, deviceID, s.locationID); err != nil {
		return nil, err
	}
	return s.Memory.WatchDevice(ctx, deviceID)
}

// Reload reads the file and publishes it when it changed since the last
// load.
func (s *FileStore) Reload(ctx context.Context) error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("reading playlist file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.modTime.IsZero() && info.ModTime().Equal(s.modTime) {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading playlist file: %w", err)
	}
	p, err := playlist.DecodeYAML(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", s.path, err)
	}
	if err := s.Memory.PublishPlaylist(ctx, s.locationID, p); err != nil {
		return err
	}
	s.modTime = info.ModTime()
	return nil
}

// Run polls the file until ctx is done. A file that fails to load is
// logged and the previous playlist stays in effect.
func (s *FileStore) Run(ctx context.Context) {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reload(ctx); err != nil {
				s.getLogger().Warn("playlist file reload failed", "path", s.path, "error", err)
			}
		}
	}
}

// Compile-time check that FileStore implements Store.
var _ Store = (*FileStore)(nil)
