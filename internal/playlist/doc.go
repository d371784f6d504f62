// Package playlist defines the per-location playlist document and the
// rules that decide whether an item may play at a given instant.
//
// The player treats playlists as read-only input. Nothing in this package
// rejects a playlist at playback time: missing or malformed fields fall back
// to defaults (see Item.DisplayDuration and Eligible). Validate exists for
// admin-side tooling that wants to catch mistakes before publishing.
//
// Eligibility rules, applied in order, first failure wins:
//  1. active == false
//  2. scheduleDays present and non-empty, and today's weekday not true
//  3. current minute outside [scheduleStart, scheduleEnd] (inclusive)
//
// A missing window bound leaves that side open. A malformed bound is
// treated as missing. A window whose start is after its end (wrapping past
// midnight) never matches.
package playlist
