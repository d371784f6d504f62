package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gray-signage/internal/device"
	"github.com/nerrad567/gray-signage/internal/playlist"
	"github.com/nerrad567/gray-signage/internal/store"
)

// DefaultRetryInterval is the wait between failed subscription attempts.
const DefaultRetryInterval = 10 * time.Second

// Logger is the logging surface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// PlaylistSink receives playlists to play. *scheduler.Scheduler
// implements it.
type PlaylistSink interface {
	Replace(p playlist.Playlist)
}

// PairingSink receives assignment changes. *device.Pairing implements it.
type PairingSink interface {
	Assign(locationID string) (bool, error)
	Unassign() (bool, error)
}

// Config holds the controller's collaborators.
type Config struct {
	DeviceID string
	Store    store.Store
	Playlist PlaylistSink
	Pairing  PairingSink

	// Cache is optional. When set, the last assignment and playlist are
	// replayed on start and updated on every accepted snapshot.
	Cache store.Cache

	// RetryInterval between failed subscription attempts. Default: 10s.
	RetryInterval time.Duration

	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// Controller drives Reduce from store watches.
type Controller struct {
	deviceID string
	store    store.Store
	sink     PlaylistSink
	pairing  PairingSink
	cache    store.Cache
	retry    time.Duration
	clock    clock.Clock

	mu    sync.RWMutex
	state State

	// Owned by the Run goroutine.
	deviceWatch   *store.DeviceWatch
	playlistWatch *store.PlaylistWatch
	wantLocation  string

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a controller. Call Run to start it.
func New(cfg Config) *Controller {
	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Controller{
		deviceID: cfg.DeviceID,
		store:    cfg.Store,
		sink:     cfg.Playlist,
		pairing:  cfg.Pairing,
		cache:    cfg.Cache,
		retry:    retry,
		clock:    clk,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger.
func (c *Controller) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Controller) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// State returns the reducer state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Run replays the cache, watches the device document and follows its
// assignment until ctx is cancelled. It closes every watch before
// returning and always returns ctx.Err().
func (c *Controller) Run(ctx context.Context) error {
	defer c.closeWatches()

	c.replayCache(ctx)

	var (
		retryTimer *clock.Timer
		retryC     <-chan time.Time
	)
	defer func() {
		if retryTimer != nil {
			retryTimer.Stop()
		}
	}()

	for {
		if retryC == nil && !c.ensureWatches(ctx) {
			retryTimer = c.clock.Timer(c.retry)
			retryC = retryTimer.C
		}

		var (
			deviceC   <-chan store.DeviceSnapshot
			playlistC <-chan store.PlaylistSnapshot
		)
		if c.deviceWatch != nil {
			deviceC = c.deviceWatch.Events()
		}
		if c.playlistWatch != nil {
			playlistC = c.playlistWatch.Events()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-retryC:
			retryTimer, retryC = nil, nil

		case snap, ok := <-deviceC:
			if !ok {
				c.deviceWatch = nil
				continue
			}
			if c.dispatch(ctx, DeviceChanged{Record: snap.Record}) {
				c.saveAssignment(ctx, snap.Record.LocationID)
			}

		case snap, ok := <-playlistC:
			if !ok {
				c.playlistWatch = nil
				continue
			}
			ev := PlaylistChanged{LocationID: snap.LocationID, Playlist: snap.Playlist}
			if c.dispatch(ctx, ev) && snap.Exists {
				c.savePlaylist(ctx, snap.LocationID, snap.Playlist)
			}
		}
	}
}

// dispatch reduces ev and executes the commands. It reports whether the
// event produced any command.
func (c *Controller) dispatch(ctx context.Context, ev Event) bool {
	c.mu.Lock()
	next, cmds := Reduce(c.state, ev)
	c.state = next
	c.mu.Unlock()

	for _, cmd := range cmds {
		c.execute(ctx, cmd)
	}
	return len(cmds) > 0
}

func (c *Controller) execute(_ context.Context, cmd Command) {
	log := c.getLogger()

	switch cmd := cmd.(type) {
	case Assign:
		if _, err := c.pairing.Assign(cmd.LocationID); err != nil {
			log.Warn("pairing assign failed", "location", cmd.LocationID, "error", err)
			return
		}
		log.Info("device assigned", "location", cmd.LocationID)

	case Unassign:
		if _, err := c.pairing.Unassign(); err != nil {
			log.Warn("pairing unassign failed", "error", err)
			return
		}
		log.Info("device unassigned")

	case SubscribePlaylist:
		c.wantLocation = cmd.LocationID

	case UnsubscribePlaylist:
		c.wantLocation = ""
		c.closePlaylistWatch()

	case ReplacePlaylist:
		c.sink.Replace(cmd.Playlist)
		log.Debug("playlist replaced", "location", cmd.LocationID, "items", cmd.Playlist.Len())
	}
}

// ensureWatches opens any missing watch. It reports false if one failed.
func (c *Controller) ensureWatches(ctx context.Context) bool {
	ok := true
	log := c.getLogger()

	if c.deviceWatch == nil {
		w, err := c.store.WatchDevice(ctx, c.deviceID)
		if err != nil {
			log.Warn("device watch failed, will retry", "device_id", c.deviceID, "retry", c.retry, "error", err)
			ok = false
		} else {
			c.deviceWatch = w
			log.Debug("watching device document", "device_id", c.deviceID)
		}
	}

	if c.wantLocation != "" && c.playlistWatch == nil {
		w, err := c.store.WatchPlaylist(ctx, c.wantLocation)
		if err != nil {
			log.Warn("playlist watch failed, will retry", "location", c.wantLocation, "retry", c.retry, "error", err)
			ok = false
		} else {
			c.playlistWatch = w
			log.Debug("watching playlist", "location", c.wantLocation)
		}
	}
	return ok
}

func (c *Controller) closePlaylistWatch() {
	if c.playlistWatch == nil {
		return
	}
	if err := c.playlistWatch.Close(); err != nil {
		c.getLogger().Debug("closing playlist watch", "error", err)
	}
	c.playlistWatch = nil
}

func (c *Controller) closeWatches() {
	c.closePlaylistWatch()
	if c.deviceWatch != nil {
		if err := c.deviceWatch.Close(); err != nil {
			c.getLogger().Debug("closing device watch", "error", err)
		}
		c.deviceWatch = nil
	}
}

// replayCache feeds the cached assignment and playlist through the
// reducer so a screen that boots offline resumes its last content.
func (c *Controller) replayCache(ctx context.Context) {
	if c.cache == nil {
		return
	}
	log := c.getLogger()

	loc, err := c.cache.LoadAssignment(ctx)
	if err != nil {
		log.Warn("loading cached assignment", "error", err)
		return
	}
	if loc == "" {
		return
	}
	c.dispatch(ctx, DeviceChanged{Record: device.Record{ID: c.deviceID, LocationID: loc}})

	p, err := c.cache.LoadPlaylist(ctx, loc)
	switch {
	case errors.Is(err, store.ErrCacheMiss):
		return
	case err != nil:
		log.Warn("loading cached playlist", "location", loc, "error", err)
		return
	}
	c.dispatch(ctx, PlaylistChanged{LocationID: loc, Playlist: p})
	log.Info("resumed from cache", "location", loc, "items", p.Len())
}

func (c *Controller) saveAssignment(ctx context.Context, loc string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SaveAssignment(ctx, loc); err != nil {
		c.getLogger().Warn("caching assignment", "error", err)
	}
}

func (c *Controller) savePlaylist(ctx context.Context, loc string, p playlist.Playlist) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SavePlaylist(ctx, loc, p); err != nil {
		c.getLogger().Warn("caching playlist", "location", loc, "error", err)
	}
}
