// Package influxdb records player metrics in InfluxDB v2.
//
// Two measurements are written:
//   - playback: one point per displayed item (proof of play), tagged with
//     device, location, item id, item type and render kind
//   - heartbeat: one point per device heartbeat
//
// Metrics are optional. When influxdb.enabled is false, Connect returns
// ErrDisabled and the player runs without them.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePlayback(influxdb.Playback{DeviceID: "scr_1", ItemID: "a", ...})
package influxdb
