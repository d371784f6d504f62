// Package device establishes a screen's identity and tracks its pairing.
//
// # Identity
//
// On first boot the player generates a device id ("scr_" followed by a
// random UUID) and stores it in SQLite. Every later boot reads it back
// verbatim. Losing the database yields a new id; the old registration is
// simply never refreshed again.
//
// # Pairing
//
//	Unidentified ──Identify──▶ Unpaired ──Assign──▶ Paired
//	                              ▲                    │
//	                              └──────Unassign──────┘
//
// A screen shows a six-digit pairing code while Unpaired. An admin types
// the code into the admin tool, which writes a location onto the matching
// device document; the screen only reacts to that write. A fresh code is
// generated on every boot and whenever the assignment is removed.
//
// # Heartbeat
//
// The Heartbeat republishes {id, pairingCode, lastSeen} as a retained
// overwrite every 30 seconds and immediately when the code changes.
// A device counts as online while now - lastSeen < 60s (IsOnline).
package device
