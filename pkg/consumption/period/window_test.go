package period

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func TestComputeWindow_MonthlyAlignsToCalendarMonth(t *testing.T) {
	loc := mustLoc(t, "America/Mexico_City")

	instants := []time.Time{
		time.Date(2026, time.March, 1, 0, 0, 0, 0, loc),
		time.Date(2026, time.March, 15, 12, 30, 0, 0, loc),
		time.Date(2026, time.March, 31, 23, 59, 59, 0, loc),
	}

	for _, now := range instants {
		w, ok := ComputeWindow(UnitMonth, 1, now, loc)
		if !ok {
			t.Fatalf("expected defined window for %v", now)
		}

		wantStart := time.Date(2026, time.March, 1, 0, 0, 0, 0, loc).UTC()
		wantEnd := time.Date(2026, time.March, 31, 23, 59, 59, 999999000, loc).UTC()

		if !w.Start.Equal(wantStart) {
			t.Errorf("now=%v: start = %v, want %v", now, w.Start, wantStart)
		}
		if !w.End.Equal(wantEnd) {
			t.Errorf("now=%v: end = %v, want %v", now, w.End, wantEnd)
		}
		if !w.Contains(now.UTC()) {
			t.Errorf("window %v..%v should contain %v", w.Start, w.End, now)
		}
	}
}

func TestComputeWindow_BimonthlyPeriods(t *testing.T) {
	loc := mustLoc(t, "America/Mexico_City")

	// "Every 2 months" anchored at Jan 1: Jan-Feb, Mar-Apr, May-Jun, ...
	now := time.Date(2026, time.April, 10, 9, 0, 0, 0, loc)
	w, ok := ComputeWindow(UnitMonth, 2, now, loc)
	if !ok {
		t.Fatal("expected defined window")
	}

	wantStart := time.Date(2026, time.March, 1, 0, 0, 0, 0, loc).UTC()
	wantEnd := time.Date(2026, time.April, 30, 23, 59, 59, 999999000, loc).UTC()
	if !w.Start.Equal(wantStart) || !w.End.Equal(wantEnd) {
		t.Errorf("window = [%v, %v], want [%v, %v]", w.Start, w.End, wantStart, wantEnd)
	}
}

func TestComputeWindow_WeeklyTilesWithoutGaps(t *testing.T) {
	loc := mustLoc(t, "UTC")

	// 7-day periods anchored at Jan 1 must tile the whole year: each window
	// is exactly 7 days long and the next window starts the day after the
	// previous one ends.
	var prevEnd time.Time
	day := time.Date(2026, time.January, 1, 12, 0, 0, 0, loc)
	for day.Year() == 2026 {
		w, ok := ComputeWindow(UnitDay, 7, day, loc)
		if !ok {
			t.Fatalf("expected defined window for %v", day)
		}
		if !w.Contains(day) {
			t.Fatalf("window [%v, %v] does not contain %v", w.Start, w.End, day)
		}

		// Window spans exactly 7 calendar days.
		spanDays := w.End.Sub(w.Start).Hours() / 24
		if spanDays < 6.9 || spanDays > 7.0 {
			t.Fatalf("window span = %.4f days, want ~7", spanDays)
		}

		if !prevEnd.IsZero() && w.Start.After(prevEnd) {
			gap := w.Start.Sub(prevEnd)
			if gap > time.Second {
				t.Fatalf("gap of %v between consecutive windows at %v", gap, day)
			}
		}
		prevEnd = w.End
		day = day.AddDate(0, 0, 7)
	}
}

func TestComputeWindow_DailyPeriodBoundaries(t *testing.T) {
	loc := mustLoc(t, "UTC")

	// Jan 1..7 is the first 7-day period; Jan 8 starts the second.
	lastOfFirst := time.Date(2026, time.January, 7, 23, 0, 0, 0, loc)
	firstOfSecond := time.Date(2026, time.January, 8, 1, 0, 0, 0, loc)

	w1, _ := ComputeWindow(UnitDay, 7, lastOfFirst, loc)
	w2, _ := ComputeWindow(UnitDay, 7, firstOfSecond, loc)

	if !w1.Start.Equal(time.Date(2026, time.January, 1, 0, 0, 0, 0, loc)) {
		t.Errorf("first period start = %v", w1.Start)
	}
	if !w2.Start.Equal(time.Date(2026, time.January, 8, 0, 0, 0, 0, loc)) {
		t.Errorf("second period start = %v", w2.Start)
	}
}

func TestComputeWindow_Yearly(t *testing.T) {
	loc := mustLoc(t, "UTC")

	now := time.Date(2026, time.June, 15, 0, 0, 0, 0, loc)
	w, ok := ComputeWindow(UnitYear, 1, now, loc)
	if !ok {
		t.Fatal("expected defined window")
	}

	wantStart := time.Date(2026, time.January, 1, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2026, time.December, 31, 23, 59, 59, 999999000, loc)
	if !w.Start.Equal(wantStart) || !w.End.Equal(wantEnd) {
		t.Errorf("window = [%v, %v], want [%v, %v]", w.Start, w.End, wantStart, wantEnd)
	}
}

func TestComputeWindow_UndefinedSettings(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name       string
		unit       Unit
		multiplier int
	}{
		{"empty unit", Unit(""), 1},
		{"unknown unit", Unit("fortnight"), 1},
		{"zero multiplier", UnitMonth, 0},
		{"negative multiplier", UnitDay, -3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, ok := ComputeWindow(tc.unit, tc.multiplier, now, time.UTC)
			if ok {
				t.Error("expected undefined window")
			}
			if !w.IsZero() {
				t.Errorf("expected zero window, got [%v, %v]", w.Start, w.End)
			}
		})
	}
}

func TestComputeWindow_NilLocationFallsBackToUTC(t *testing.T) {
	now := time.Date(2026, time.February, 10, 8, 0, 0, 0, time.UTC)
	w, ok := ComputeWindow(UnitMonth, 1, now, nil)
	if !ok {
		t.Fatal("expected defined window")
	}
	wantStart := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !w.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", w.Start, wantStart)
	}
}

func TestComputeWindow_TimezoneOffsetPreserved(t *testing.T) {
	loc := mustLoc(t, "America/Mexico_City")

	// Local month boundary converted to UTC keeps the zone offset: midnight
	// in Mexico City is 06:00 UTC (standard time).
	now := time.Date(2026, time.January, 20, 10, 0, 0, 0, loc)
	w, _ := ComputeWindow(UnitMonth, 1, now, loc)

	if w.Start.Hour() == 0 {
		t.Error("UTC start should carry the local zone offset, got midnight UTC")
	}
	if !w.Start.Equal(time.Date(2026, time.January, 1, 0, 0, 0, 0, loc).UTC()) {
		t.Errorf("start = %v", w.Start)
	}
}

func TestLoadLocation_Fallback(t *testing.T) {
	if loc := LoadLocation("Not/AZone", nil); loc != time.UTC {
		t.Errorf("expected UTC fallback, got %v", loc)
	}
	if loc := LoadLocation("", nil); loc != time.UTC {
		t.Errorf("expected UTC for empty name, got %v", loc)
	}
}
