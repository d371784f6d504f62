package syncer

import (
	"github.com/nerrad567/gray-signage/internal/device"
	"github.com/nerrad567/gray-signage/internal/playlist"
)

// State is what the reducer remembers between events.
type State struct {
	// LocationID is the current assignment, "" when unpaired.
	LocationID string
}

// Paired reports whether the state has an assignment.
func (s State) Paired() bool {
	return s.LocationID != ""
}

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// DeviceChanged carries a new device document snapshot.
type DeviceChanged struct {
	Record device.Record
}

// PlaylistChanged carries a new playlist document snapshot. A missing
// document arrives as an empty playlist.
type PlaylistChanged struct {
	LocationID string
	Playlist   playlist.Playlist
}

func (DeviceChanged) isEvent()   {}
func (PlaylistChanged) isEvent() {}

// Command is an output of Reduce.
type Command interface {
	isCommand()
}

// SubscribePlaylist starts watching a location's playlist.
type SubscribePlaylist struct {
	LocationID string
}

// UnsubscribePlaylist stops watching a location's playlist.
type UnsubscribePlaylist struct {
	LocationID string
}

// ReplacePlaylist installs a playlist in the scheduler.
type ReplacePlaylist struct {
	LocationID string
	Playlist   playlist.Playlist
}

// Assign moves the pairing state machine to Paired at LocationID.
type Assign struct {
	LocationID string
}

// Unassign moves the pairing state machine back to Unpaired.
type Unassign struct{}

func (SubscribePlaylist) isCommand()   {}
func (UnsubscribePlaylist) isCommand() {}
func (ReplacePlaylist) isCommand()     {}
func (Assign) isCommand()              {}
func (Unassign) isCommand()            {}

// Reduce applies one event to the state.
//
// Device snapshots:
//   - same location as before: nothing to do
//   - leaving a location: unsubscribe from it and empty the scheduler
//   - arriving at a location: assign, then subscribe
//   - no location: unassign
//
// Playlist snapshots for any location other than the current one are
// dropped; they come from a subscription that is being torn down.
func Reduce(s State, ev Event) (State, []Command) {
	switch ev := ev.(type) {
	case DeviceChanged:
		return reduceDevice(s, ev.Record.LocationID)
	case PlaylistChanged:
		if !s.Paired() || ev.LocationID != s.LocationID {
			return s, nil
		}
		return s, []Command{ReplacePlaylist{LocationID: ev.LocationID, Playlist: ev.Playlist}}
	default:
		return s, nil
	}
}

func reduceDevice(s State, loc string) (State, []Command) {
	if loc == s.LocationID {
		return s, nil
	}

	var cmds []Command
	if s.Paired() {
		cmds = append(cmds,
			UnsubscribePlaylist{LocationID: s.LocationID},
			ReplacePlaylist{},
		)
	}
	if loc == "" {
		cmds = append(cmds, Unassign{})
	} else {
		cmds = append(cmds,
			Assign{LocationID: loc},
			SubscribePlaylist{LocationID: loc},
		)
	}
	return State{LocationID: loc}, cmds
}
