package device

import (
	"time"
)

// Registration is the device-owned half of the device document.
// The heartbeat overwrites it; it never carries a location.
type Registration struct {
	ID          string    `json:"id"`
	PairingCode string    `json:"pairingCode"`
	LastSeen    time.Time `json:"lastSeen"`
}

// Assignment is the admin-owned half of the device document.
type Assignment struct {
	LocationID string `json:"locationId"`
}

// Record is the merged device document as observed by the player and
// the admin tool.
type Record struct {
	ID          string    `json:"id"`
	PairingCode string    `json:"pairingCode"`
	LastSeen    time.Time `json:"lastSeen"`
	LocationID  string    `json:"locationId,omitempty"`
}

// Paired reports whether the record carries a location.
func (r Record) Paired() bool {
	return r.LocationID != ""
}

// OnlineWindow is how recently a device must have sent a heartbeat to
// count as online. It tolerates one missed 30 second heartbeat.
const OnlineWindow = 60 * time.Second

// IsOnline reports whether a heartbeat at lastSeen means the device is
// online at now: now - lastSeen < OnlineWindow.
func IsOnline(lastSeen, now time.Time) bool {
	return IsOnlineWithin(lastSeen, now, OnlineWindow)
}

// IsOnlineWithin is IsOnline with a custom window.
func IsOnlineWithin(lastSeen, now time.Time, window time.Duration) bool {
	if lastSeen.IsZero() {
		return false
	}
	return now.Sub(lastSeen) < window
}
