package syncer

import (
	"reflect"
	"testing"

	"github.com/nerrad567/gray-signage/internal/device"
	"github.com/nerrad567/gray-signage/internal/playlist"
)

func at(loc string) DeviceChanged {
	return DeviceChanged{Record: device.Record{ID: "scr_1", LocationID: loc}}
}

func TestReduce_Device(t *testing.T) {
	tests := []struct {
		name      string
		state     State
		event     Event
		wantState State
		wantCmds  []Command
	}{
		{
			name:      "unpaired stays unpaired",
			state:     State{},
			event:     at(""),
			wantState: State{},
			wantCmds:  nil,
		},
		{
			name:      "first assignment",
			state:     State{},
			event:     at("store-1"),
			wantState: State{LocationID: "store-1"},
			wantCmds: []Command{
				Assign{LocationID: "store-1"},
				SubscribePlaylist{LocationID: "store-1"},
			},
		},
		{
			name:      "same assignment again",
			state:     State{LocationID: "store-1"},
			event:     at("store-1"),
			wantState: State{LocationID: "store-1"},
			wantCmds:  nil,
		},
		{
			name:      "reassignment closes the old subscription first",
			state:     State{LocationID: "store-1"},
			event:     at("store-2"),
			wantState: State{LocationID: "store-2"},
			wantCmds: []Command{
				UnsubscribePlaylist{LocationID: "store-1"},
				ReplacePlaylist{},
				Assign{LocationID: "store-2"},
				SubscribePlaylist{LocationID: "store-2"},
			},
		},
		{
			name:      "unpair",
			state:     State{LocationID: "store-1"},
			event:     at(""),
			wantState: State{},
			wantCmds: []Command{
				UnsubscribePlaylist{LocationID: "store-1"},
				ReplacePlaylist{},
				Unassign{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotState, gotCmds := Reduce(tt.state, tt.event)
			if gotState != tt.wantState {
				t.Errorf("state = %+v, want %+v", gotState, tt.wantState)
			}
			if !reflect.DeepEqual(gotCmds, tt.wantCmds) {
				t.Errorf("commands = %#v, want %#v", gotCmds, tt.wantCmds)
			}
		})
	}
}

func TestReduce_Playlist(t *testing.T) {
	p := playlist.Playlist{Name: "Lobby", Content: []playlist.Item{{ID: "a", Type: playlist.TypeImage}}}

	tests := []struct {
		name     string
		state    State
		event    PlaylistChanged
		wantCmds []Command
	}{
		{
			name:     "current location replaces",
			state:    State{LocationID: "store-1"},
			event:    PlaylistChanged{LocationID: "store-1", Playlist: p},
			wantCmds: []Command{ReplacePlaylist{LocationID: "store-1", Playlist: p}},
		},
		{
			name:     "other location dropped",
			state:    State{LocationID: "store-1"},
			event:    PlaylistChanged{LocationID: "store-2", Playlist: p},
			wantCmds: nil,
		},
		{
			name:     "unpaired drops everything",
			state:    State{},
			event:    PlaylistChanged{LocationID: "store-1", Playlist: p},
			wantCmds: nil,
		},
		{
			name:     "missing document empties the rotation",
			state:    State{LocationID: "store-1"},
			event:    PlaylistChanged{LocationID: "store-1"},
			wantCmds: []Command{ReplacePlaylist{LocationID: "store-1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotState, gotCmds := Reduce(tt.state, tt.event)
			if gotState != tt.state {
				t.Errorf("playlist events must not change state: %+v", gotState)
			}
			if !reflect.DeepEqual(gotCmds, tt.wantCmds) {
				t.Errorf("commands = %#v, want %#v", gotCmds, tt.wantCmds)
			}
		})
	}
}
