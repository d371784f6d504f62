package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-signage/internal/device"
	"github.com/nerrad567/gray-signage/internal/playlist"
)

// Memory is an in-process document store. It implements Store and Admin
// with the same snapshot rules as MQTTStore: a device watch starts
// delivering once the device has an assignment document, and watches
// receive the current document immediately when one exists.
type Memory struct {
	mu sync.Mutex

	registrations map[string]device.Registration
	assignments   map[string]device.Assignment
	playlists     map[string]playlist.Playlist

	deviceWatches   map[string]map[*DeviceWatch]struct{}
	playlistWatches map[string]map[*PlaylistWatch]struct{}
}

var (
	_ Store = (*Memory)(nil)
	_ Admin = (*Memory)(nil)
)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		registrations:   make(map[string]device.Registration),
		assignments:     make(map[string]device.Assignment),
		playlists:       make(map[string]playlist.Playlist),
		deviceWatches:   make(map[string]map[*DeviceWatch]struct{}),
		playlistWatches: make(map[string]map[*PlaylistWatch]struct{}),
	}
}

// WatchDevice observes the merged device document.
func (m *Memory) WatchDevice(_ context.Context, deviceID string) (*DeviceWatch, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: empty device id", ErrInvalidArgument)
	}

	var w *DeviceWatch
	w = NewWatch[DeviceSnapshot](func() error {
		m.mu.Lock()
		delete(m.deviceWatches[deviceID], w)
		m.mu.Unlock()
		return nil
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deviceWatches[deviceID] == nil {
		m.deviceWatches[deviceID] = make(map[*DeviceWatch]struct{})
	}
	m.deviceWatches[deviceID][w] = struct{}{}
	if snap, ok := m.deviceSnapshotLocked(deviceID); ok {
		w.Deliver(snap)
	}
	return w, nil
}

// WatchPlaylist observes one location's playlist document.
func (m *Memory) WatchPlaylist(_ context.Context, locationID string) (*PlaylistWatch, error) {
	if locationID == "" {
		return nil, fmt.Errorf("%w: empty location id", ErrInvalidArgument)
	}

	var w *PlaylistWatch
	w = NewWatch[PlaylistSnapshot](func() error {
		m.mu.Lock()
		delete(m.playlistWatches[locationID], w)
		m.mu.Unlock()
		return nil
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playlistWatches[locationID] == nil {
		m.playlistWatches[locationID] = make(map[*PlaylistWatch]struct{})
	}
	m.playlistWatches[locationID][w] = struct{}{}
	if p, ok := m.playlists[locationID]; ok {
		w.Deliver(PlaylistSnapshot{LocationID: locationID, Playlist: p.Clone(), Exists: true})
	}
	return w, nil
}

// PublishRegistration overwrites the registration half of a device.
func (m *Memory) PublishRegistration(_ context.Context, reg device.Registration) error {
	if reg.ID == "" {
		return fmt.Errorf("%w: empty device id", ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations[reg.ID] = reg
	m.notifyDeviceLocked(reg.ID)
	return nil
}

// Devices returns every device with a registration or an assignment,
// sorted by id.
func (m *Memory) Devices(_ context.Context) ([]device.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[string]struct{}, len(m.registrations)+len(m.assignments))
	for id := range m.registrations {
		ids[id] = struct{}{}
	}
	for id := range m.assignments {
		ids[id] = struct{}{}
	}

	records := make([]device.Record, 0, len(ids))
	for id := range ids {
		records = append(records, m.recordLocked(id))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Assign writes a device's assignment.
func (m *Memory) Assign(_ context.Context, deviceID, locationID string) error {
	if deviceID == "" || locationID == "" {
		return fmt.Errorf("%w: device and location are required", ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[deviceID] = device.Assignment{LocationID: locationID}
	m.notifyDeviceLocked(deviceID)
	return nil
}

// Unassign writes an empty assignment for a device.
func (m *Memory) Unassign(_ context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: empty device id", ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.registrations[deviceID]; !ok {
		if _, ok := m.assignments[deviceID]; !ok {
			return ErrDeviceNotFound
		}
	}
	m.assignments[deviceID] = device.Assignment{}
	m.notifyDeviceLocked(deviceID)
	return nil
}

// PublishPlaylist overwrites a location's playlist.
func (m *Memory) PublishPlaylist(_ context.Context, locationID string, p playlist.Playlist) error {
	if locationID == "" {
		return fmt.Errorf("%w: empty location id", ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playlists[locationID] = playlist.Normalize(p)
	m.notifyPlaylistLocked(locationID)
	return nil
}

// DeletePlaylist removes a location's playlist. Watchers receive a
// snapshot with Exists false.
func (m *Memory) DeletePlaylist(_ context.Context, locationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.playlists, locationID)
	m.notifyPlaylistLocked(locationID)
	return nil
}

func (m *Memory) recordLocked(id string) device.Record {
	reg := m.registrations[id]
	return device.Record{
		ID:          id,
		PairingCode: reg.PairingCode,
		LastSeen:    reg.LastSeen,
		LocationID:  m.assignments[id].LocationID,
	}
}

func (m *Memory) deviceSnapshotLocked(id string) (DeviceSnapshot, bool) {
	if _, ok := m.assignments[id]; !ok {
		return DeviceSnapshot{}, false
	}
	return DeviceSnapshot{Record: m.recordLocked(id)}, true
}

func (m *Memory) notifyDeviceLocked(id string) {
	snap, ok := m.deviceSnapshotLocked(id)
	if !ok {
		return
	}
	for w := range m.deviceWatches[id] {
		w.Deliver(snap)
	}
}

func (m *Memory) notifyPlaylistLocked(locationID string) {
	p, ok := m.playlists[locationID]
	for w := range m.playlistWatches[locationID] {
		w.Deliver(PlaylistSnapshot{LocationID: locationID, Playlist: p.Clone(), Exists: ok})
	}
}
