package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gray-signage/internal/device"
	"github.com/nerrad567/gray-signage/internal/infrastructure/config"
	"github.com/nerrad567/gray-signage/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-signage/internal/infrastructure/logging"
	"github.com/nerrad567/gray-signage/internal/playlist"
	"github.com/nerrad567/gray-signage/internal/store"
)

// monday9am is Monday 2026-03-02 09:00 UTC.
var monday9am = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// ─── Test doubles ───────────────────────────────────────────────────

type fakeMetrics struct {
	mu         sync.Mutex
	plays      []influxdb.Playback
	heartbeats int
}

func (m *fakeMetrics) WriteHeartbeat(string, string, bool, time.Time) {
	m.mu.Lock()
	m.heartbeats++
	m.mu.Unlock()
}

func (m *fakeMetrics) WritePlayback(p influxdb.Playback) {
	m.mu.Lock()
	m.plays = append(m.plays, p)
	m.mu.Unlock()
}

func (m *fakeMetrics) playbacks() []influxdb.Playback {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]influxdb.Playback(nil), m.plays...)
}

type testPlayer struct {
	*Player
	mem      *store.Memory
	mock     *clock.Mock
	metrics  *fakeMetrics
	displays chan Display
}

func quietLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func startPlayer(t *testing.T, at time.Time) *testPlayer {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(at)

	codes := 0
	tp := &testPlayer{
		mem:      store.NewMemory(),
		mock:     mock,
		metrics:  &fakeMetrics{},
		displays: make(chan Display, 64),
	}

	p, err := New(Config{
		Identity: device.Identity{DeviceID: "scr_1"},
		Store:    tp.mem,
		Metrics:  tp.metrics,
		Location: time.UTC,
		CodeGenerator: func() (string, error) {
			codes++
			return fmt.Sprintf("%06d", 100000+codes), nil
		},
		Clock:  mock,
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tp.Player = p
	p.OnDisplay(func(d Display) { tp.displays <- d })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
	return tp
}

// waitFor returns the first display matching ok.
func (tp *testPlayer) waitFor(t *testing.T, desc string, ok func(Display) bool) Display {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case d := <-tp.displays:
			if ok(d) {
				return d
			}
		case <-deadline:
			t.Fatalf("timed out waiting for display: %s (last: %+v)", desc, tp.Display())
			return Display{}
		}
	}
}

// waitForRegistration polls the store until the device shows code.
func (tp *testPlayer) waitForRegistration(t *testing.T, code string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		records, _ := tp.mem.Devices(context.Background())
		for _, r := range records {
			if r.ID == "scr_1" && r.PairingCode == code {
				return
			}
		}
		select {
		case <-deadline:
			t.Fatalf("registration with code %s never published (have %+v)", code, records)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func playingItem(id string) func(Display) bool {
	return func(d Display) bool {
		return d.Mode == ModePlaying && d.Item != nil && d.Item.ID == id
	}
}

func lobby() playlist.Playlist {
	return playlist.Playlist{Name: "Lobby", Content: []playlist.Item{
		{ID: "welcome", Type: playlist.TypeImage, Duration: playlist.Seconds(5)},
		{ID: "promo", Type: playlist.TypeVideo, Duration: playlist.Seconds(8)},
		{ID: "night", Type: playlist.TypeImage, ScheduleStart: "20:00", ScheduleEnd: "23:00"},
	}}
}

// ─── Lifecycle ──────────────────────────────────────────────────────

func TestPlayer_PairPlayUnpair(t *testing.T) {
	ctx := context.Background()
	tp := startPlayer(t, monday9am)

	// Boot: unpaired, showing a code, registration published.
	d := tp.waitFor(t, "pairing code", func(d Display) bool { return d.Mode == ModePairing })
	if d.PairingCode != "100001" || d.DeviceID != "scr_1" {
		t.Fatalf("pairing display = %+v", d)
	}
	tp.waitForRegistration(t, "100001")

	// Admin publishes content and pairs by code.
	if err := tp.mem.PublishPlaylist(ctx, "store-1", lobby()); err != nil {
		t.Fatalf("PublishPlaylist() error = %v", err)
	}
	if _, err := store.Pair(ctx, tp.mem, "100001", "store-1"); err != nil {
		t.Fatalf("Pair() error = %v", err)
	}

	d = tp.waitFor(t, "first item", playingItem("welcome"))
	if d.LocationID != "store-1" || d.Render != playlist.RenderImage || *d.Index != 0 {
		t.Errorf("playing display = %+v", d)
	}

	// Rotation: welcome (5s) then promo; night is out of its window.
	tp.mock.Add(5 * time.Second)
	d = tp.waitFor(t, "second item", playingItem("promo"))
	if d.Render != playlist.RenderVideo {
		t.Errorf("Render = %q, want video", d.Render)
	}
	tp.mock.Add(8 * time.Second)
	tp.waitFor(t, "wrap to first item", playingItem("welcome"))

	// Proof of play for welcome.
	plays := tp.metrics.playbacks()
	if len(plays) < 2 {
		t.Fatalf("recorded %d playbacks, want at least 2", len(plays))
	}
	if plays[0].ItemID != "welcome" || plays[0].EndedAt.Sub(plays[0].StartedAt) != 5*time.Second {
		t.Errorf("first playback = %+v", plays[0])
	}

	// Unpair: back to a fresh code, which is republished.
	if err := tp.mem.Unassign(ctx, "scr_1"); err != nil {
		t.Fatalf("Unassign() error = %v", err)
	}
	d = tp.waitFor(t, "new pairing code", func(d Display) bool { return d.Mode == ModePairing })
	if d.PairingCode != "100002" {
		t.Errorf("PairingCode = %q, want fresh 100002", d.PairingCode)
	}
	tp.waitForRegistration(t, "100002")

	if got := tp.Pairing().State; got != device.StateUnpaired {
		t.Errorf("pairing state = %v, want unpaired", got)
	}
}

func TestPlayer_IdleWhenNothingEligible(t *testing.T) {
	ctx := context.Background()
	tp := startPlayer(t, time.Date(2026, 3, 2, 17, 59, 55, 0, time.UTC))
	tp.waitFor(t, "pairing code", func(d Display) bool { return d.Mode == ModePairing })

	evening := playlist.Playlist{Name: "Evening", Content: []playlist.Item{
		{ID: "late", Type: playlist.TypeImage, ScheduleStart: "18:00", ScheduleEnd: "22:00"},
		{ID: "off", Type: playlist.TypeImage, Active: playlist.Bool(false)},
	}}
	_ = tp.mem.PublishPlaylist(ctx, "bar", evening)
	_ = tp.mem.Assign(ctx, "scr_1", "bar")

	d := tp.waitFor(t, "idle", func(d Display) bool { return d.Mode == ModeIdle })
	if d.Render != playlist.RenderBlank || d.LocationID != "bar" || d.Item != nil {
		t.Errorf("idle display = %+v", d)
	}

	// Content arrives on the first idle recheck inside its window.
	tp.mock.Add(10 * time.Second)
	tp.waitFor(t, "late item", playingItem("late"))
}

func TestPlayer_PlaylistEditRestartsRotation(t *testing.T) {
	ctx := context.Background()
	tp := startPlayer(t, monday9am)
	tp.waitFor(t, "pairing code", func(d Display) bool { return d.Mode == ModePairing })

	_ = tp.mem.PublishPlaylist(ctx, "store-1", lobby())
	_ = tp.mem.Assign(ctx, "scr_1", "store-1")
	tp.waitFor(t, "first item", playingItem("welcome"))
	tp.mock.Add(5 * time.Second)
	tp.waitFor(t, "second item", playingItem("promo"))

	edited := lobby()
	edited.Content[0].ID = "welcome-v2"
	_ = tp.mem.PublishPlaylist(ctx, "store-1", edited)

	d := tp.waitFor(t, "restart at first item", playingItem("welcome-v2"))
	if *d.Index != 0 {
		t.Errorf("Index = %d, want 0 after edit", *d.Index)
	}
}

func TestPlayer_RunOnce(t *testing.T) {
	tp := startPlayer(t, monday9am)
	tp.waitFor(t, "pairing code", func(d Display) bool { return d.Mode == ModePairing })

	if err := tp.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Store: store.NewMemory()}); !errors.Is(err, device.ErrInvalidIdentity) {
		t.Errorf("New() without device id error = %v, want ErrInvalidIdentity", err)
	}
	if _, err := New(Config{Identity: device.Identity{DeviceID: "scr_1"}}); err == nil {
		t.Error("New() without store should fail")
	}
}
