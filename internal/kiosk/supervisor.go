package kiosk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/gray-signage/internal/infrastructure/config"
)

// Status represents the current state of the renderer process.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusBackoff Status = "backoff"
	StatusFailed  Status = "failed"
)

// URLPlaceholder in Args is replaced by Config.URL.
const URLPlaceholder = "{url}"

// Defaults applied by New for zero values.
const (
	DefaultRestartDelay    = 5 * time.Second
	DefaultMaxRestartDelay = time.Minute
	DefaultStableThreshold = 2 * time.Minute
	DefaultGracefulTimeout = 10 * time.Second
)

// ErrAlreadyRunning is returned by Start while the renderer is supervised.
var ErrAlreadyRunning = errors.New("kiosk: already running")

// Config holds configuration for the supervised renderer.
type Config struct {
	// Name is used in log lines. Defaults to the binary's base name.
	Name string

	// Binary is the path to the renderer executable.
	Binary string

	// Args are passed to Binary after URLPlaceholder expansion.
	Args []string

	// URL is the renderer feed address substituted into Args.
	URL string

	// Env are additional environment variables (key=value format).
	Env []string

	// RestartDelay is the first backoff step after a crash.
	RestartDelay time.Duration

	// MaxRestartDelay caps the backoff.
	MaxRestartDelay time.Duration

	// StableThreshold is how long a run must last for the backoff to reset.
	StableThreshold time.Duration

	// MaxRestartAttempts limits consecutive restarts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration
}

// FromConfig builds a Config from the kiosk section and the feed URL.
func FromConfig(cfg config.KioskConfig, url string) Config {
	return Config{
		Binary:             cfg.Binary,
		Args:               cfg.Args,
		URL:                url,
		RestartDelay:       config.Seconds(cfg.RestartDelaySeconds),
		MaxRestartAttempts: cfg.MaxRestartAttempts,
	}
}

// ExpandArgs returns args with every URLPlaceholder replaced by url.
func ExpandArgs(args []string, url string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, URLPlaceholder, url)
	}
	return out
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Supervisor runs one renderer process and keeps it alive.
type Supervisor struct {
	cfg  Config
	args []string

	logMu  sync.RWMutex
	logger Logger

	mu            sync.Mutex
	cmd           *exec.Cmd
	status        Status
	restarts      int
	lastError     error
	startTime     time.Time
	stopRequested bool
	stop          chan struct{}
	done          chan struct{}
}

// New validates cfg, applies defaults and returns a stopped Supervisor.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Binary == "" {
		return nil, fmt.Errorf("kiosk binary is required")
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Binary[strings.LastIndex(cfg.Binary, "/")+1:]
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.MaxRestartDelay <= 0 {
		cfg.MaxRestartDelay = DefaultMaxRestartDelay
	}
	if cfg.MaxRestartDelay < cfg.RestartDelay {
		cfg.MaxRestartDelay = cfg.RestartDelay
	}
	if cfg.StableThreshold <= 0 {
		cfg.StableThreshold = DefaultStableThreshold
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = DefaultGracefulTimeout
	}

	return &Supervisor{
		cfg:    cfg,
		args:   ExpandArgs(cfg.Args, cfg.URL),
		logger: noopLogger{},
		status: StatusStopped,
	}, nil
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.logger = logger
}

func (s *Supervisor) getLogger() Logger {
	s.logMu.RLock()
	defer s.logMu.RUnlock()
	return s.logger
}

// Start launches the renderer and begins supervising it. It returns an
// error only if the first launch fails.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusRunning || s.status == StatusBackoff {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.stopRequested = false
	s.restarts = 0
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	if err := s.launch(); err != nil {
		s.mu.Lock()
		s.status = StatusFailed
		s.lastError = err
		close(s.done)
		s.mu.Unlock()
		return err
	}

	go s.supervise(ctx)
	return nil
}

// launch starts one renderer process.
func (s *Supervisor) launch() error {
	log := s.getLogger()
	log.Info("starting renderer", "name", s.cfg.Name, "binary", s.cfg.Binary, "args", s.args)

	cmd := exec.Command(s.cfg.Binary, s.args...) //nolint:gosec // Binary comes from local config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if s.cfg.Env != nil {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", s.cfg.Name, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.status = StatusRunning
	s.startTime = time.Now()
	s.mu.Unlock()

	go s.captureOutput("stdout", stdout)
	go s.captureOutput("stderr", stderr)

	log.Info("renderer started", "name", s.cfg.Name, "pid", cmd.Process.Pid)
	return nil
}

// captureOutput logs the stream line by line.
func (s *Supervisor) captureOutput(stream string, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.getLogger().Debug("renderer output", "name", s.cfg.Name, "stream", stream, "line", sc.Text())
	}
}

// supervise waits for each run to end and restarts until stopped,
// cancelled or out of attempts.
func (s *Supervisor) supervise(ctx context.Context) {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.mu.Unlock()
	defer close(done)

	log := s.getLogger()

	exitCh := make(chan error, 1)
	s.wait(exitCh)

	for {
		var err error
		select {
		case err = <-exitCh:
		case <-ctx.Done():
			s.shutdown(exitCh)
			return
		case <-stop:
			s.shutdown(exitCh)
			return
		}

		s.mu.Lock()
		ranFor := time.Since(s.startTime)
		s.mu.Unlock()

		if err == nil {
			err = errors.New("renderer exited")
		}
		log.Warn("renderer exited unexpectedly", "name", s.cfg.Name, "error", err, "ran_for", ranFor)

		s.mu.Lock()
		if ranFor >= s.cfg.StableThreshold {
			s.restarts = 0
		}
		s.restarts++
		attempt := s.restarts
		s.status = StatusBackoff
		s.lastError = err
		s.mu.Unlock()

		if s.cfg.MaxRestartAttempts > 0 && attempt > s.cfg.MaxRestartAttempts {
			log.Error("max restart attempts reached", "name", s.cfg.Name, "attempts", attempt-1)
			s.setStatus(StatusFailed, err)
			return
		}

		delay := s.backoff(attempt)
		log.Info("restarting renderer", "name", s.cfg.Name, "attempt", attempt, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.setStatus(StatusStopped, nil)
			return
		case <-stop:
			timer.Stop()
			s.setStatus(StatusStopped, nil)
			return
		case <-timer.C:
		}

		if err := s.launch(); err != nil {
			log.Error("failed to restart renderer", "name", s.cfg.Name, "error", err)
			s.setStatus(StatusFailed, err)
			return
		}
		s.wait(exitCh)
	}
}

// wait reports the current process's exit on exitCh.
func (s *Supervisor) wait(exitCh chan<- error) {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	go func() {
		exitCh <- cmd.Wait()
	}()
}

// shutdown terminates the running process and waits for it to exit.
func (s *Supervisor) shutdown(exitCh <-chan error) {
	s.terminate()
	<-exitCh
	s.getLogger().Info("renderer stopped", "name", s.cfg.Name)
	s.setStatus(StatusStopped, nil)
}

// backoff returns the delay before restart attempt n (1-based).
func (s *Supervisor) backoff(attempt int) time.Duration {
	delay := s.cfg.RestartDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.cfg.MaxRestartDelay {
			return s.cfg.MaxRestartDelay
		}
	}
	return delay
}

func (s *Supervisor) setStatus(st Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
	if err != nil {
		s.lastError = err
	}
}

// terminate signals the running process group with SIGTERM, then
// SIGKILL after GracefulTimeout.
func (s *Supervisor) terminate() {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	log := s.getLogger()

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		log.Warn("failed to send SIGTERM to renderer", "name", s.cfg.Name, "error", err)
	}

	go func() {
		timer := time.NewTimer(s.cfg.GracefulTimeout)
		defer timer.Stop()
		select {
		case <-done:
			return
		case <-timer.C:
		}
		log.Warn("graceful shutdown timeout, sending SIGKILL", "name", s.cfg.Name, "timeout", s.cfg.GracefulTimeout)
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			log.Error("failed to kill renderer", "name", s.cfg.Name, "error", err)
		}
	}()
}

// Stop terminates the renderer and waits for supervision to end.
// Stop on a stopped Supervisor is a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	done, stop := s.done, s.stop
	first := !s.stopRequested
	s.stopRequested = true
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	if first {
		s.getLogger().Info("stopping renderer", "name", s.cfg.Name)
		close(stop)
	}
	<-done
	return nil
}

// Status returns the current status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Stats is a point-in-time view of the supervisor.
type Stats struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	Restarts  int           `json:"restarts"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the renderer.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Name:     s.cfg.Name,
		Status:   s.status,
		Restarts: s.restarts,
	}
	if s.status == StatusRunning && s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
		st.Uptime = time.Since(s.startTime)
	}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}
