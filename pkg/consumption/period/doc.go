// Package period computes the recurring consumption window that contains
// a given instant.
//
// Windows are anchored to January 1st, 00:00:00 local time of the current
// year and tile forward in whole periods (day, month, or year, times a
// multiplier). The window that contains "now" is returned with its start
// floored to the first instant of the day and its end ceiled to the last
// instant of the day, both in the configured time zone, then converted to
// UTC for storage.
//
// The epoch is recomputed from now's year on every call. This means the
// year boundary always starts a fresh tiling; callers that need to
// reconstruct a historical window must persist it at charge time rather
// than recompute it.
package period
