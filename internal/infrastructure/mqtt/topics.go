package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every Gray Signage topic.
const TopicPrefix = "graysignage"

// Topics builds Gray Signage MQTT topics. Playlists and device documents
// are stored as retained messages, so a topic doubles as a document key.
//
//	topics := mqtt.Topics{}
//	topics.LocationPlaylist("lobby")      // graysignage/location/lobby/playlist
//	topics.DeviceRegistration("scr_1234") // graysignage/device/scr_1234/registration
type Topics struct{}

// LocationPlaylist is the retained playlist document of a location.
// Written by the admin side, read by every screen assigned there.
func (Topics) LocationPlaylist(locationID string) string {
	return fmt.Sprintf("%s/location/%s/playlist", TopicPrefix, locationID)
}

// DeviceRegistration carries the device-owned half of the device document:
// id, pairing code and last heartbeat.
func (Topics) DeviceRegistration(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/registration", TopicPrefix, deviceID)
}

// DeviceAssignment carries the admin-owned half of the device document.
// An empty retained payload means the screen is unpaired.
func (Topics) DeviceAssignment(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/assignment", TopicPrefix, deviceID)
}

// DeviceDocument matches both halves of one device document.
func (Topics) DeviceDocument(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/+", TopicPrefix, deviceID)
}

// AllDeviceRegistrations matches the registration of every screen.
// Used by the admin CLI to find a screen by pairing code.
func (Topics) AllDeviceRegistrations() string {
	return TopicPrefix + "/device/+/registration"
}

// AllDeviceDocuments matches both halves of every device document.
func (Topics) AllDeviceDocuments() string {
	return TopicPrefix + "/device/+/+"
}

// ClientStatus is the retained online/offline status of one MQTT client.
// It is also the Last Will topic.
func (Topics) ClientStatus(clientID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefix, clientID)
}

// ParseDeviceTopic splits a device topic into device id and document part
// ("registration" or "assignment"). ok is false for any other topic.
func ParseDeviceTopic(topic string) (deviceID, part string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefix+"/device/")
	if !found {
		return "", "", false
	}
	deviceID, part, found = strings.Cut(rest, "/")
	if !found || deviceID == "" || strings.Contains(part, "/") {
		return "", "", false
	}
	switch part {
	case "registration", "assignment":
		return deviceID, part, true
	default:
		return "", "", false
	}
}
