// Package scheduler owns the playback cursor of a screen.
//
// A Scheduler holds exactly one playlist and one cursor. The playlist is
// only ever replaced wholesale (Replace), which cancels the pending advance
// timer, resets the cursor to the first eligible item and re-arms the timer.
// Advancing scans forward from the item after the cursor, wrapping at most
// once, and selects the first item eligible at that instant. When none is
// eligible the scheduler is idle and re-checks on a fixed interval, so
// content appears within one interval of its schedule window opening.
//
// Whether an item is still eligible while it is on screen is only checked
// at the next advance; a displayed item is never cut short.
//
// Time comes from a clock.Clock, so tests drive the rotation with
// clock.NewMock() instead of sleeping.
package scheduler
