// Package player composes the engine into a running screen.
//
// A Player owns one device's pairing state machine, heartbeat, playback
// scheduler and sync controller, and folds their outputs into a single
// Display value: what the renderer should show right now.
//
//	mode     | shown when
//	---------+----------------------------------------------
//	pairing  | the device has no location; shows its code
//	idle     | paired, but no playlist item is eligible
//	playing  | paired, one item selected
//
// Every display change is pushed to OnDisplay handlers (the renderer
// feed) and, when a metrics recorder is configured, each finished item
// is written as a proof-of-play point.
package player
