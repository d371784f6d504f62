package player

import (
	"time"

	"github.com/nerrad567/gray-signage/internal/device"
	"github.com/nerrad567/gray-signage/internal/playlist"
	"github.com/nerrad567/gray-signage/internal/scheduler"
)

// Mode is the top-level display mode.
type Mode string

// Display modes.
const (
	ModePairing Mode = "pairing"
	ModeIdle    Mode = "idle"
	ModePlaying Mode = "playing"
)

// Display is what the renderer should show.
type Display struct {
	Mode        Mode                `json:"mode"`
	DeviceID    string              `json:"deviceId"`
	PairingCode string              `json:"pairingCode,omitempty"`
	LocationID  string              `json:"locationId,omitempty"`
	Playlist    string              `json:"playlist,omitempty"`
	Index       *int                `json:"index,omitempty"`
	Item        *playlist.Item      `json:"item,omitempty"`
	Render      playlist.RenderKind `json:"render"`
	Since       time.Time           `json:"since"`
}

// Compose folds the pairing status and scheduler state into a Display.
// An unpaired device always shows its pairing code, whatever the
// scheduler holds. Since is taken from the scheduler; the caller sets it
// for pairing displays.
func Compose(status device.Status, sched scheduler.State) Display {
	d := Display{
		DeviceID: status.DeviceID,
		Render:   playlist.RenderBlank,
	}

	if status.State != device.StatePaired {
		d.Mode = ModePairing
		d.PairingCode = status.PairingCode
		return d
	}

	d.LocationID = status.LocationID
	d.Playlist = sched.Playlist
	d.Since = sched.Since
	if sched.Idle {
		d.Mode = ModeIdle
		return d
	}

	idx := sched.Index
	item := sched.Item.Clone()
	d.Mode = ModePlaying
	d.Index = &idx
	d.Item = &item
	d.Render = item.Type.Render()
	return d
}

// same reports whether two displays show the same thing from the same
// moment. A re-selected item has a new Since and counts as a change.
func same(a, b Display) bool {
	if a.Mode != b.Mode || a.DeviceID != b.DeviceID || a.PairingCode != b.PairingCode ||
		a.LocationID != b.LocationID || a.Playlist != b.Playlist || !a.Since.Equal(b.Since) {
		return false
	}
	if (a.Index == nil) != (b.Index == nil) || (a.Index != nil && *a.Index != *b.Index) {
		return false
	}
	if (a.Item == nil) != (b.Item == nil) || (a.Item != nil && a.Item.ID != b.Item.ID) {
		return false
	}
	return true
}
