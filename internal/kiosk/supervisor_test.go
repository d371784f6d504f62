package kiosk

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-signage/internal/infrastructure/config"
)

// recordingLogger keeps every message for assertions.
type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) add(msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add(msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add(msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add(msg) }

func (l *recordingLogger) count(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.msgs {
		if m == msg {
			n++
		}
	}
	return n
}

func waitStatus(t *testing.T, s *Supervisor, want Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status = %q, want %q", s.Status(), want)
}

func TestExpandArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "no args", args: nil, want: []string{}},
		{name: "bare placeholder", args: []string{"--kiosk", "{url}"}, want: []string{"--kiosk", "http://127.0.0.1:8090/"}},
		{name: "embedded placeholder", args: []string{"--app={url}"}, want: []string{"--app=http://127.0.0.1:8090/"}},
		{name: "untouched", args: []string{"--incognito"}, want: []string{"--incognito"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandArgs(tt.args, "http://127.0.0.1:8090/")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(Config{Binary: "/usr/bin/chromium"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if s.cfg.Name != "chromium" {
		t.Errorf("Name = %q, want chromium", s.cfg.Name)
	}
	if s.cfg.RestartDelay != DefaultRestartDelay {
		t.Errorf("RestartDelay = %v, want %v", s.cfg.RestartDelay, DefaultRestartDelay)
	}
	if s.cfg.MaxRestartDelay != DefaultMaxRestartDelay {
		t.Errorf("MaxRestartDelay = %v, want %v", s.cfg.MaxRestartDelay, DefaultMaxRestartDelay)
	}
	if s.cfg.GracefulTimeout != DefaultGracefulTimeout {
		t.Errorf("GracefulTimeout = %v, want %v", s.cfg.GracefulTimeout, DefaultGracefulTimeout)
	}
	if s.Status() != StatusStopped {
		t.Errorf("initial Status() = %q, want %q", s.Status(), StatusStopped)
	}
}

func TestNew_RequiresBinary(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without binary should fail")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.KioskConfig{
		Enabled:             true,
		Binary:              "/usr/bin/chromium",
		Args:                []string{"--kiosk", "{url}"},
		RestartDelaySeconds: 3,
		MaxRestartAttempts:  4,
	}, "http://127.0.0.1:8090/")

	if cfg.RestartDelay != 3*time.Second {
		t.Errorf("RestartDelay = %v, want 3s", cfg.RestartDelay)
	}
	if cfg.MaxRestartAttempts != 4 {
		t.Errorf("MaxRestartAttempts = %d, want 4", cfg.MaxRestartAttempts)
	}
	if cfg.URL != "http://127.0.0.1:8090/" {
		t.Errorf("URL = %q", cfg.URL)
	}
}

func TestBackoff(t *testing.T) {
	s, err := New(Config{
		Binary:          "/bin/true",
		RestartDelay:    1 * time.Second,
		MaxRestartDelay: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{7, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := s.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestSupervisor_StopWhenNotRunning(t *testing.T) {
	s, err := New(Config{Binary: "/bin/true"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
}

func TestSupervisor_StartAndStop(t *testing.T) {
	s, err := New(Config{Binary: "/bin/sleep", Args: []string{"30"}, GracefulTimeout: time.Second})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if s.Status() != StatusRunning {
		t.Errorf("Status() = %q, want running", s.Status())
	}
	if st := s.Stats(); st.PID == 0 {
		t.Error("Stats().PID = 0 while running")
	}
	if err := s.Start(context.Background()); err != ErrAlreadyRunning {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if s.Status() != StatusStopped {
		t.Errorf("Status() after Stop = %q, want stopped", s.Status())
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() error: %v", err)
	}
}

func TestSupervisor_ContextCancelStops(t *testing.T) {
	s, err := New(Config{Binary: "/bin/sleep", Args: []string{"30"}, GracefulTimeout: time.Second})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	cancel()

	waitStatus(t, s, StatusStopped)
}

func TestSupervisor_RestartsUntilLimit(t *testing.T) {
	log := &recordingLogger{}
	s, err := New(Config{
		Binary:             "/bin/sh",
		Args:               []string{"-c", "exit 1"},
		RestartDelay:       10 * time.Millisecond,
		MaxRestartDelay:    20 * time.Millisecond,
		MaxRestartAttempts: 2,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	s.SetLogger(log)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	waitStatus(t, s, StatusFailed)

	if got := log.count("renderer started"); got != 3 {
		t.Errorf("renderer started %d times, want 3", got)
	}
	if s.Stats().LastError == "" {
		t.Error("Stats().LastError is empty after crashes")
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
}

func TestSupervisor_StopDuringBackoff(t *testing.T) {
	s, err := New(Config{
		Binary:       "/bin/sh",
		Args:         []string{"-c", "exit 1"},
		RestartDelay: time.Hour,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	waitStatus(t, s, StatusBackoff)

	stopped := make(chan struct{})
	go func() {
		_ = s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() blocked during backoff")
	}
	if s.Status() != StatusStopped {
		t.Errorf("Status() = %q, want stopped", s.Status())
	}
}

func TestSupervisor_StartWithInvalidBinary(t *testing.T) {
	s, err := New(Config{Binary: "/nonexistent/renderer"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Start() with missing binary should fail")
	}
	if s.Status() != StatusFailed {
		t.Errorf("Status() = %q, want failed", s.Status())
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
}

func TestSupervisor_CapturesOutput(t *testing.T) {
	log := &recordingLogger{}
	s, err := New(Config{
		Binary:       "/bin/sh",
		Args:         []string{"-c", "echo {url}; sleep 30"},
		URL:          "http://127.0.0.1:8090/",
		RestartDelay: time.Hour,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	s.SetLogger(log)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for log.count("renderer output") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no renderer output captured")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
