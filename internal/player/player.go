package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gray-signage/internal/device"
	"github.com/nerrad567/gray-signage/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-signage/internal/infrastructure/logging"
	"github.com/nerrad567/gray-signage/internal/scheduler"
	"github.com/nerrad567/gray-signage/internal/store"
	"github.com/nerrad567/gray-signage/internal/syncer"
)

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("player: already running")

// Metrics records heartbeats and proof-of-play. *influxdb.Client
// implements it.
type Metrics interface {
	device.HeartbeatRecorder
	WritePlayback(p influxdb.Playback)
}

// Config holds everything a Player needs. Zero durations use the
// defaults of the component they configure.
type Config struct {
	// Identity is the persisted device identity; DeviceID is required.
	Identity device.Identity

	// Identities, when set, receives the pairing code of every boot and
	// code rotation.
	Identities device.IdentityRepository

	// Store is the remote document store. Required.
	Store store.Store

	// Cache is optional offline state.
	Cache store.Cache

	// Metrics is optional.
	Metrics Metrics

	// Location is the timezone used for schedules. Default: time.Local.
	Location *time.Location

	DefaultDuration   time.Duration
	IdleRecheck       time.Duration
	HeartbeatInterval time.Duration
	RetryInterval     time.Duration

	// CodeGenerator overrides pairing code generation.
	CodeGenerator device.CodeGenerator

	// Clock defaults to the wall clock.
	Clock clock.Clock

	// Logger defaults to logging.Default("dev").
	Logger *logging.Logger
}

// Player is one running screen.
type Player struct {
	identity   device.Identity
	identities device.IdentityRepository
	metrics    Metrics
	clock      clock.Clock
	logger     *logging.Logger

	pairing    *device.Pairing
	scheduler  *scheduler.Scheduler
	heartbeat  *device.Heartbeat
	controller *syncer.Controller

	mu          sync.Mutex
	status      device.Status
	statusSince time.Time
	sched       scheduler.State
	display     Display
	seq         uint64

	notifyMu sync.Mutex
	lastSeq  uint64
	handlers []func(Display)

	started atomic.Bool
}

// New wires a player. Nothing runs until Run.
func New(cfg Config) (*Player, error) {
	if cfg.Identity.DeviceID == "" {
		return nil, fmt.Errorf("player: %w", device.ErrInvalidIdentity)
	}
	if cfg.Store == nil {
		return nil, errors.New("player: store is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default("dev")
	}

	p := &Player{
		identity:   cfg.Identity,
		identities: cfg.Identities,
		metrics:    cfg.Metrics,
		clock:      clk,
		logger:     logger.Component("player"),
	}

	p.pairing = device.NewPairing(cfg.CodeGenerator)

	p.scheduler = scheduler.New(scheduler.Config{
		Clock:           clk,
		Location:        cfg.Location,
		DefaultDuration: cfg.DefaultDuration,
		IdleRecheck:     cfg.IdleRecheck,
	})
	p.scheduler.SetLogger(logger.Component("scheduler"))

	var recorder device.HeartbeatRecorder
	if cfg.Metrics != nil {
		recorder = cfg.Metrics
	}
	p.heartbeat = device.NewHeartbeat(device.HeartbeatConfig{
		Interval:  cfg.HeartbeatInterval,
		Publisher: cfg.Store,
		Source:    p.pairing,
		Recorder:  recorder,
		Clock:     clk,
	})
	p.heartbeat.SetLogger(logger.Component("heartbeat"))

	p.controller = syncer.New(syncer.Config{
		DeviceID:      cfg.Identity.DeviceID,
		Store:         cfg.Store,
		Playlist:      p.scheduler,
		Pairing:       p.pairing,
		Cache:         cfg.Cache,
		RetryInterval: cfg.RetryInterval,
		Clock:         clk,
	})
	p.controller.SetLogger(logger.Component("syncer"))

	p.sched = p.scheduler.Current()
	p.statusSince = clk.Now()
	p.display = p.composeLocked()

	p.pairing.OnChange(p.onPairing)
	p.scheduler.OnChange(p.onSchedule)
	return p, nil
}

// Display returns what the screen shows now.
func (p *Player) Display() Display {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.display
}

// Pairing returns the pairing status.
func (p *Player) Pairing() device.Status {
	return p.pairing.Status()
}

// DeviceID returns the device id.
func (p *Player) DeviceID() string {
	return p.identity.DeviceID
}

// OnDisplay registers fn to receive every display change. Handlers run
// serialized, in order, and must not block.
func (p *Player) OnDisplay(fn func(Display)) {
	p.notifyMu.Lock()
	p.handlers = append(p.handlers, fn)
	p.notifyMu.Unlock()
}

// Run identifies the device, starts the heartbeat and runs the sync
// controller until ctx is cancelled. On return the heartbeat and the
// scheduler are stopped. A Player can be run once.
func (p *Player) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	return p.run(ctx)
}

func (p *Player) run(ctx context.Context) error {
	if err := p.pairing.Identify(p.identity.DeviceID); err != nil {
		return fmt.Errorf("identifying device: %w", err)
	}
	p.logger.Info("device identified",
		"device_id", p.identity.DeviceID,
		"pairing_code", p.pairing.Status().PairingCode,
	)

	p.heartbeat.Start(ctx)
	defer p.heartbeat.Stop()
	defer p.scheduler.Stop()

	err := p.controller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Player) onPairing(st device.Status) {
	p.mu.Lock()
	codeChanged := st.PairingCode != p.status.PairingCode
	p.status = st
	p.statusSince = p.clock.Now()
	p.mu.Unlock()

	if codeChanged {
		p.heartbeat.Trigger()
		p.saveCode(st.PairingCode)
	}
	p.logger.Info("pairing changed", "state", st.State.String(), "location", st.LocationID)
	p.refresh()
}

func (p *Player) onSchedule(st scheduler.State) {
	p.mu.Lock()
	p.sched = st
	p.mu.Unlock()
	p.refresh()
}

// refresh recomputes the display and notifies handlers when it changed.
func (p *Player) refresh() {
	p.mu.Lock()
	next := p.composeLocked()
	prev := p.display
	if same(prev, next) {
		p.mu.Unlock()
		return
	}
	p.display = next
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	p.recordPlayback(prev, next.Since)

	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	if seq < p.lastSeq {
		return
	}
	p.lastSeq = seq
	for _, fn := range p.handlers {
		fn(next)
	}
}

func (p *Player) composeLocked() Display {
	d := Compose(p.status, p.sched)
	if d.DeviceID == "" {
		d.DeviceID = p.identity.DeviceID
	}
	if d.Mode == ModePairing || p.statusSince.After(d.Since) {
		d.Since = p.statusSince
	}
	return d
}

// recordPlayback writes a proof-of-play point for a display that just
// ended.
func (p *Player) recordPlayback(ended Display, at time.Time) {
	if p.metrics == nil || ended.Mode != ModePlaying || ended.Item == nil {
		return
	}
	if at.IsZero() || at.Before(ended.Since) {
		at = p.clock.Now()
	}
	p.metrics.WritePlayback(influxdb.Playback{
		DeviceID:   ended.DeviceID,
		LocationID: ended.LocationID,
		ItemID:     ended.Item.ID,
		ItemType:   string(ended.Item.Type),
		Render:     string(ended.Render),
		StartedAt:  ended.Since,
		EndedAt:    at,
	})
}

func (p *Player) saveCode(code string) {
	if p.identities == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := p.identities.Load(ctx)
	if err != nil {
		p.logger.Warn("loading identity to store pairing code", "error", err)
		return
	}
	id.PairingCode = code
	id.UpdatedAt = p.clock.Now().UTC()
	if err := p.identities.Save(ctx, id); err != nil {
		p.logger.Warn("storing pairing code", "error", err)
	}
}
