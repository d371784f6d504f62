// Package mqtt connects Gray Signage to its MQTT broker.
//
// The broker is the shared document store between the admin side and the
// screens. Every document is a retained message:
//
//	graysignage/location/{locationId}/playlist       playlist (admin)
//	graysignage/device/{deviceId}/registration       id, code, lastSeen (screen)
//	graysignage/device/{deviceId}/assignment         locationId (admin)
//	graysignage/status/{clientId}                    online/offline, also the LWT
//
// Subscribing to a document topic delivers its current value at once and
// every later replacement, which is the change-notification model the
// player relies on.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.LocationPlaylist("lobby"), 1,
//	    func(topic string, payload []byte) error {
//	        return handlePlaylist(payload)
//	    })
package mqtt
