// Package syncer keeps the player consistent with the remote documents.
//
// The decision logic is a pure reducer:
//
//	Reduce(State, Event) (State, []Command)
//
// Events are device and playlist snapshots; commands say what to do
// about them (subscribe, unsubscribe, replace the playlist, move the
// pairing state machine). The Controller owns the subscriptions, feeds
// snapshots through Reduce and executes the resulting commands, so the
// rules can be tested without a store, a clock or goroutines.
//
// Subscription lifecycle:
//   - exactly one device document watch for the lifetime of Run
//   - at most one playlist watch; the old one is closed before a new
//     location is watched
//   - failed watches are retried every retry interval, while the last
//     playlist keeps playing
//   - every watch is closed when Run returns
package syncer
