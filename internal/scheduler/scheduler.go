package scheduler

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gray-signage/internal/playlist"
)

// DefaultIdleRecheck is how often an idle scheduler re-evaluates.
const DefaultIdleRecheck = 10 * time.Second

// Logger is the logging surface the scheduler needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// State is a snapshot of the scheduler.
type State struct {
	// Playlist is the name of the installed playlist.
	Playlist string

	// Size is the number of items in the installed playlist.
	Size int

	// Index is the cursor. It is only meaningful when Idle is false.
	Index int

	// Item is a copy of the selected item; zero when idle.
	Item playlist.Item

	// Idle is true when no item is eligible or the playlist is empty.
	Idle bool

	// Since is when the current selection (or idle state) began.
	Since time.Time

	seq uint64
}

// Config holds scheduler settings. Zero values fall back to defaults.
type Config struct {
	// Clock supplies time and timers. Default: the wall clock.
	Clock clock.Clock

	// Location is the screen's timezone for schedule evaluation.
	// Default: time.Local.
	Location *time.Location

	// DefaultDuration applies to items without a positive duration.
	// Default: playlist.DefaultDuration.
	DefaultDuration time.Duration

	// IdleRecheck is the re-evaluation interval while idle.
	// Default: DefaultIdleRecheck.
	IdleRecheck time.Duration
}

// Scheduler rotates through one playlist. All methods are safe for
// concurrent use.
type Scheduler struct {
	clock           clock.Clock
	location        *time.Location
	defaultDuration time.Duration
	idleRecheck     time.Duration

	mu       sync.Mutex
	playlist playlist.Playlist
	index    int
	idle     bool
	since    time.Time
	timer    *clock.Timer
	gen      uint64
	seq      uint64
	stopped  bool

	notifyMu sync.Mutex
	lastSeq  uint64
	handlers []func(State)

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates an idle scheduler with an empty playlist. No timer runs
// until Replace installs a non-empty playlist.
func New(cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = playlist.DefaultDuration
	}
	if cfg.IdleRecheck <= 0 {
		cfg.IdleRecheck = DefaultIdleRecheck
	}

	return &Scheduler{
		clock:           cfg.Clock,
		location:        cfg.Location,
		defaultDuration: cfg.DefaultDuration,
		idleRecheck:     cfg.IdleRecheck,
		idle:            true,
		since:           cfg.Clock.Now(),
		logger:          noopLogger{},
	}
}

// SetLogger sets the logger.
func (s *Scheduler) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Scheduler) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// OnChange registers fn to receive every new selection and every entry
// into idle. Handlers run outside the scheduler lock, never concurrently,
// and never see a state older than one they already received. They must
// not call Replace or Advance.
func (s *Scheduler) OnChange(fn func(State)) {
	s.notifyMu.Lock()
	s.handlers = append(s.handlers, fn)
	s.notifyMu.Unlock()
}

// Current returns the present state.
func (s *Scheduler) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Replace installs p wholesale and restarts the rotation.
//
// The pending timer is cancelled before the new playlist is installed.
// The cursor goes to index 0 if that item is eligible, otherwise to the
// first eligible item after it; with none eligible the scheduler idles.
// An empty playlist idles with no timer.
func (s *Scheduler) Replace(p playlist.Playlist) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	s.cancelTimerLocked()
	s.playlist = p.Clone()
	s.index = 0
	s.selectLocked(0)
	s.since = s.clock.Now()
	s.armLocked()
	st := s.stateLocked()
	s.mu.Unlock()

	s.getLogger().Info("playlist replaced",
		"playlist", st.Playlist, "items", st.Size, "idle", st.Idle, "index", st.Index)
	s.notify(st)
}

// Advance moves to the next eligible item now, as if the current item's
// duration had elapsed.
func (s *Scheduler) Advance() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	st, changed := s.advanceLocked()
	s.mu.Unlock()

	if changed {
		s.notify(st)
	}
}

// Stop cancels the timer. Later calls to Replace and Advance are ignored
// and no further notifications are sent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cancelTimerLocked()
	s.mu.Unlock()
}

// fire is the timer callback. A callback armed before the latest
// Replace, Advance or Stop carries an old generation and does nothing.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	st, changed := s.advanceLocked()
	s.mu.Unlock()

	if changed {
		s.notify(st)
	}
}

// advanceLocked performs one advance and re-arms the timer. changed is
// false only for idle staying idle.
func (s *Scheduler) advanceLocked() (State, bool) {
	s.cancelTimerLocked()

	wasIdle := s.idle
	n := len(s.playlist.Content)
	start := s.index + 1
	if s.index < 0 || s.index >= n {
		start = 0
	}
	s.selectLocked(start)
	s.armLocked()

	st := s.stateLocked()
	changed := !(wasIdle && st.Idle)
	if changed {
		s.getLogger().Debug("advanced", "index", st.Index, "item", st.Item.ID, "idle", st.Idle)
	}
	return st, changed
}

// selectLocked scans up to one full wrap starting at start and moves the
// cursor to the first eligible item. With none eligible it sets idle and
// leaves the cursor where it was.
func (s *Scheduler) selectLocked(start int) {
	now := s.clock.Now()
	local := now.In(s.location)
	n := len(s.playlist.Content)

	wasIdle, prev := s.idle, s.index
	s.idle = true
	for i := 0; i < n; i++ {
		cand := (start + i) % n
		if playlist.Eligible(s.playlist.Content[cand], local) {
			s.index = cand
			s.idle = false
			break
		}
	}

	if !s.idle || !wasIdle || prev != s.index {
		s.since = now
	}
	s.seq++
}

// armLocked schedules the next advance. An empty playlist arms nothing.
func (s *Scheduler) armLocked() {
	if len(s.playlist.Content) == 0 {
		return
	}

	d := s.idleRecheck
	if !s.idle {
		d = s.playlist.Content[s.index].DisplayDuration(s.defaultDuration)
	}

	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() { s.fire(gen) })
}

// cancelTimerLocked stops the pending timer and invalidates any callback
// already in flight.
func (s *Scheduler) cancelTimerLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) stateLocked() State {
	st := State{
		Playlist: s.playlist.Name,
		Size:     len(s.playlist.Content),
		Index:    s.index,
		Idle:     s.idle,
		Since:    s.since,
		seq:      s.seq,
	}
	if !s.idle && s.index < len(s.playlist.Content) {
		st.Item = s.playlist.Content[s.index].Clone()
	}
	return st
}

func (s *Scheduler) notify(st State) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if st.seq <= s.lastSeq {
		return
	}
	s.lastSeq = st.seq

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	for _, fn := range s.handlers {
		fn(st)
	}
}
