package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-signage/internal/device"
	"github.com/nerrad567/gray-signage/internal/playlist"
)

// DeviceSnapshot is one observation of a device document.
type DeviceSnapshot struct {
	Record device.Record
}

// PlaylistSnapshot is one observation of a location's playlist document.
// A missing document arrives with Exists false and an empty playlist.
type PlaylistSnapshot struct {
	LocationID string
	Playlist   playlist.Playlist
	Exists     bool
}

// DeviceWatch delivers device document snapshots.
type DeviceWatch = Watch[DeviceSnapshot]

// PlaylistWatch delivers playlist document snapshots.
type PlaylistWatch = Watch[PlaylistSnapshot]

// Store is what the player needs from the document store.
type Store interface {
	// WatchDevice observes the merged device document.
	WatchDevice(ctx context.Context, deviceID string) (*DeviceWatch, error)

	// WatchPlaylist observes one location's playlist document.
	WatchPlaylist(ctx context.Context, locationID string) (*PlaylistWatch, error)

	// PublishRegistration overwrites the device-owned registration.
	PublishRegistration(ctx context.Context, reg device.Registration) error
}

// Admin is what the admin tooling needs from the document store.
type Admin interface {
	// Devices returns every known device document.
	Devices(ctx context.Context) ([]device.Record, error)

	// Assign writes a device's assignment.
	Assign(ctx context.Context, deviceID, locationID string) error

	// Unassign clears a device's assignment. The device returns to
	// showing a pairing code.
	Unassign(ctx context.Context, deviceID string) error

	// PublishPlaylist overwrites a location's playlist document.
	PublishPlaylist(ctx context.Context, locationID string, p playlist.Playlist) error
}

// Pair assigns the unpaired device showing code to locationID.
//
// Returns:
//   - device.Record: The record that was paired
//   - error: ErrCodeNotFound, ErrAmbiguousCode or a store error
func Pair(ctx context.Context, admin Admin, code, locationID string) (device.Record, error) {
	if code == "" || locationID == "" {
		return device.Record{}, fmt.Errorf("%w: code and location are required", ErrInvalidArgument)
	}

	records, err := admin.Devices(ctx)
	if err != nil {
		return device.Record{}, fmt.Errorf("listing devices: %w", err)
	}

	rec, err := FindByCode(records, code)
	if err != nil {
		return device.Record{}, err
	}
	if err := admin.Assign(ctx, rec.ID, locationID); err != nil {
		return device.Record{}, fmt.Errorf("assigning %s: %w", rec.ID, err)
	}
	rec.LocationID = locationID
	return rec, nil
}

// FindByCode returns the single unpaired record showing code.
func FindByCode(records []device.Record, code string) (device.Record, error) {
	var (
		found device.Record
		n     int
	)
	for _, r := range records {
		if r.Paired() || r.PairingCode != code {
			continue
		}
		found = r
		n++
	}
	switch n {
	case 0:
		return device.Record{}, ErrCodeNotFound
	case 1:
		return found, nil
	default:
		return device.Record{}, ErrAmbiguousCode
	}
}

// OnlineRecords splits records by the online rule at now.
func OnlineRecords(records []device.Record, now time.Time, window time.Duration) (online, offline []device.Record) {
	for _, r := range records {
		if device.IsOnlineWithin(r.LastSeen, now, window) {
			online = append(online, r)
		} else {
			offline = append(offline, r)
		}
	}
	return online, offline
}

// decodeRegistration parses a registration payload. Empty means deleted.
func decodeRegistration(payload []byte) (device.Registration, bool, error) {
	if len(payload) == 0 {
		return device.Registration{}, false, nil
	}
	var reg device.Registration
	if err := json.Unmarshal(payload, &reg); err != nil {
		return device.Registration{}, false, fmt.Errorf("decoding registration: %w", err)
	}
	return reg, true, nil
}

// decodeAssignment parses an assignment payload. Empty means unassigned.
func decodeAssignment(payload []byte) (device.Assignment, error) {
	if len(payload) == 0 {
		return device.Assignment{}, nil
	}
	var a device.Assignment
	if err := json.Unmarshal(payload, &a); err != nil {
		return device.Assignment{}, fmt.Errorf("decoding assignment: %w", err)
	}
	return a, nil
}
