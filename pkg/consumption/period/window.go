package period

import (
	"log/slog"
	"time"
)

// Unit is the calendar unit a consumption period is measured in.
type Unit string

const (
	// UnitDay resets the window every N days.
	UnitDay Unit = "day"

	// UnitMonth resets the window every N calendar months.
	UnitMonth Unit = "month"

	// UnitYear resets the window every N calendar years.
	UnitYear Unit = "year"
)

// Valid reports whether u is a known period unit.
func (u Unit) Valid() bool {
	switch u {
	case UnitDay, UnitMonth, UnitYear:
		return true
	}
	return false
}

// Label returns the human-readable label for the unit, used by the change
// log and rejection messages.
func (u Unit) Label() string {
	switch u {
	case UnitDay:
		return "Day"
	case UnitMonth:
		return "Month"
	case UnitYear:
		return "Year"
	}
	return "Undefined"
}

// Window is a half-open-in-spirit period range [Start, End]. Both bounds
// are stored in UTC. A zero Window means the period settings were invalid
// and consumption for the config is unmeasurable.
type Window struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the window is undefined.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Contains reports whether t falls inside the window (inclusive bounds).
func (w Window) Contains(t time.Time) bool {
	if w.IsZero() {
		return false
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// ComputeWindow returns the period window containing now for the given
// unit and multiplier, evaluated in loc.
//
// The anchor is January 1st, 00:00:00 of now's year in loc. Elapsed whole
// periods since the anchor are computed by integer division, the window
// start is the anchor advanced by that many periods, and the end is one
// period later minus one second. Start is floored to 00:00:00.000 and end
// is ceiled to 23:59:59.999999 local time before conversion to UTC.
//
// A nil loc falls back to UTC. An invalid unit or non-positive multiplier
// yields (Window{}, false).
func ComputeWindow(unit Unit, multiplier int, now time.Time, loc *time.Location) (Window, bool) {
	if !unit.Valid() || multiplier <= 0 {
		return Window{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	local := now.In(loc)
	epoch := time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, loc)

	var start, end time.Time
	switch unit {
	case UnitDay:
		days := daysBetween(epoch, local)
		elapsed := days / multiplier
		start = epoch.AddDate(0, 0, elapsed*multiplier)
		end = start.AddDate(0, 0, multiplier).Add(-time.Second)

	case UnitMonth:
		months := (local.Year()-epoch.Year())*12 + int(local.Month()-epoch.Month())
		elapsed := months / multiplier
		start = epoch.AddDate(0, elapsed*multiplier, 0)
		end = start.AddDate(0, multiplier, 0).Add(-time.Second)

	case UnitYear:
		years := local.Year() - epoch.Year()
		elapsed := years / multiplier
		start = epoch.AddDate(elapsed*multiplier, 0, 0)
		end = start.AddDate(multiplier, 0, 0).Add(-time.Second)
	}

	start = startOfDay(start)
	end = endOfDay(end)

	return Window{Start: start.UTC(), End: end.UTC()}, true
}

// LoadLocation resolves a time zone name, falling back to UTC when the
// name cannot be resolved. The fallback is logged, not fatal.
func LoadLocation(name string, logger *slog.Logger) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("unresolvable time zone, falling back to UTC",
			"timezone", name,
			"error", err,
		)
		return time.UTC
	}
	return loc
}

// daysBetween counts whole calendar days from a to b in a's location.
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, a.Location())
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, a.Location())
	return int(bd.Sub(ad).Hours() / 24)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	// Microsecond precision matches what the ledger stores.
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999000, t.Location())
}
