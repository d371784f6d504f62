// Package store is the player's view of the remote document store.
//
// Three documents matter to a screen:
//
//	device/{id}/registration   written by the device heartbeat
//	device/{id}/assignment     written by the admin side when pairing
//	location/{id}/playlist     written by the admin side when publishing
//
// The device document is the merge of registration and assignment. Watches
// deliver whole-document snapshots through a latest-wins mailbox: a slow
// consumer may miss intermediate snapshots but never sees them out of
// order, and always ends up with the newest one.
//
// Implementations:
//   - MQTTStore: retained MQTT messages as documents (production)
//   - Memory: in-process documents (tests, standalone mode)
//   - FileStore: a single playlist file bound to one location (standalone)
//
// SQLiteCache persists the last assignment and playlist so a screen that
// boots without connectivity shows last-known content.
package store
