package device

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultHeartbeatInterval is how often the registration is republished.
const DefaultHeartbeatInterval = 30 * time.Second

// Logger is the logging surface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RegistrationPublisher writes the device-owned registration document.
// Each call overwrites the previous one.
type RegistrationPublisher interface {
	PublishRegistration(ctx context.Context, reg Registration) error
}

// HeartbeatRecorder receives one call per successful heartbeat.
// It is optional; the InfluxDB client implements it.
type HeartbeatRecorder interface {
	WriteHeartbeat(deviceID, locationID string, paired bool, ts time.Time)
}

// StatusSource provides the current pairing status. *Pairing implements it.
type StatusSource interface {
	Status() Status
}

// HeartbeatConfig holds configuration for the heartbeat.
type HeartbeatConfig struct {
	// Interval between publishes. Default: 30 seconds.
	Interval time.Duration

	// Publisher writes the registration document.
	Publisher RegistrationPublisher

	// Source supplies id, code and location for each publish.
	Source StatusSource

	// Recorder optionally records heartbeat metrics.
	Recorder HeartbeatRecorder

	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// Heartbeat periodically republishes the device registration.
type Heartbeat struct {
	interval  time.Duration
	publisher RegistrationPublisher
	source    StatusSource
	recorder  HeartbeatRecorder
	clock     clock.Clock

	trigger  chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHeartbeat creates a heartbeat. Call Start to begin publishing.
func NewHeartbeat(cfg HeartbeatConfig) *Heartbeat {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Heartbeat{
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		recorder:  cfg.Recorder,
		clock:     clk,
		trigger:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger.
func (h *Heartbeat) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

func (h *Heartbeat) getLogger() Logger {
	h.loggerMu.RLock()
	defer h.loggerMu.RUnlock()
	return h.logger
}

// Start publishes once immediately and then on every interval until ctx
// is cancelled or Stop is called.
func (h *Heartbeat) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.loop(ctx)
}

// Stop ends the loop and waits for it. Nothing is published afterwards.
// Safe to call more than once.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
	})
}

// Trigger requests an immediate publish, for example after the pairing
// code changed. Requests made while one is pending are coalesced.
func (h *Heartbeat) Trigger() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

// PublishNow publishes the registration synchronously.
func (h *Heartbeat) PublishNow(ctx context.Context) error {
	st := h.source.Status()
	if st.State == StateUnidentified {
		return ErrNotIdentified
	}

	now := h.clock.Now().UTC()
	reg := Registration{ID: st.DeviceID, PairingCode: st.PairingCode, LastSeen: now}
	if err := h.publisher.PublishRegistration(ctx, reg); err != nil {
		return err
	}

	if h.recorder != nil {
		h.recorder.WriteHeartbeat(st.DeviceID, st.LocationID, st.State == StatePaired, now)
	}
	return nil
}

func (h *Heartbeat) loop(ctx context.Context) {
	defer h.wg.Done()

	ticker := h.clock.Ticker(h.interval)
	defer ticker.Stop()

	h.beat(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			h.beat(ctx)
		case <-h.trigger:
			h.beat(ctx)
		}
	}
}

func (h *Heartbeat) beat(ctx context.Context) {
	if err := h.PublishNow(ctx); err != nil {
		h.getLogger().Warn("heartbeat publish failed", "error", err)
		return
	}
	h.getLogger().Debug("heartbeat published")
}
