package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementPlayback  = "playback"
	measurementHeartbeat = "heartbeat"
)

// Playback is one completed (or interrupted) display of a playlist item.
type Playback struct {
	DeviceID   string
	LocationID string
	ItemID     string
	ItemType   string
	Render     string
	StartedAt  time.Time
	EndedAt    time.Time
}

// WritePlayback records a proof-of-play point. Timestamped at EndedAt,
// with the shown duration in seconds as the field.
func (c *Client) WritePlayback(p Playback) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(playbackPoint(p))
}

// WriteHeartbeat records that the device announced itself at ts.
// paired distinguishes screens still waiting for an admin.
func (c *Client) WriteHeartbeat(deviceID, locationID string, paired bool, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(heartbeatPoint(deviceID, locationID, paired, ts))
}

// WritePoint writes an arbitrary point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func playbackPoint(p Playback) *write.Point {
	return write.NewPoint(
		measurementPlayback,
		map[string]string{
			"device_id":   p.DeviceID,
			"location_id": p.LocationID,
			"item_id":     p.ItemID,
			"item_type":   p.ItemType,
			"render":      p.Render,
		},
		map[string]any{
			"duration_s": p.EndedAt.Sub(p.StartedAt).Seconds(),
		},
		p.EndedAt,
	)
}

func heartbeatPoint(deviceID, locationID string, paired bool, ts time.Time) *write.Point {
	tags := map[string]string{"device_id": deviceID}
	if locationID != "" {
		tags["location_id"] = locationID
	}
	return write.NewPoint(measurementHeartbeat, tags, map[string]any{"paired": paired}, ts)
}
