package domain

import (
	"testing"
	"time"
)

func TestResolveWindowTable(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	sched := DefaultSchedule(loc)

	// 2026-02-09 is a Monday.
	tests := []struct {
		name   string
		day    int
		before int
		after  int
	}{
		{"monday", 9, 3, 0},
		{"tuesday", 10, 1, 1},
		{"wednesday", 11, 2, 0},
		{"thursday", 12, 1, 1},
		{"friday", 13, 2, 0},
		{"saturday", 14, 1, 1},
		{"sunday", 15, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			morning := time.Date(2026, 2, tt.day, 9, 0, 0, 0, loc)
			if got := ResolveWindow(morning, sched); got != tt.before {
				t.Fatalf("before cutoff: got %d, want %d", got, tt.before)
			}
			justBefore := time.Date(2026, 2, tt.day, 14, 29, 59, 0, loc)
			if got := ResolveWindow(justBefore, sched); got != tt.before {
				t.Fatalf("14:29:59: got %d, want %d", got, tt.before)
			}
			atCutoff := time.Date(2026, 2, tt.day, 14, 30, 0, 0, loc)
			if got := ResolveWindow(atCutoff, sched); got != tt.after {
				t.Fatalf("14:30:00: got %d, want %d", got, tt.after)
			}
			evening := time.Date(2026, 2, tt.day, 23, 59, 0, 0, loc)
			if got := ResolveWindow(evening, sched); got != tt.after {
				t.Fatalf("after cutoff: got %d, want %d", got, tt.after)
			}
		})
	}
}

func TestResolveWindowConvertsToScheduleLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	sched := DefaultSchedule(loc)

	// 11:00 UTC on Monday is 14:00 in UTC+3: still before the cutoff.
	now := time.Date(2026, 2, 9, 11, 0, 0, 0, time.UTC)
	if got := ResolveWindow(now, sched); got != 3 {
		t.Fatalf("expected 3 days before cutoff in schedule zone, got %d", got)
	}
	// 11:30 UTC is 14:30 in UTC+3.
	now = time.Date(2026, 2, 9, 11, 30, 0, 0, time.UTC)
	if got := ResolveWindow(now, sched); got != 0 {
		t.Fatalf("expected 0 days at cutoff in schedule zone, got %d", got)
	}
}

func TestWindowPolicyFixedBypassesTable(t *testing.T) {
	loc := time.UTC
	monday := time.Date(2026, 2, 9, 16, 0, 0, 0, loc)

	cutoff := WindowPolicy{Mode: WindowModeCutoff, Schedule: DefaultSchedule(loc)}
	if got := cutoff.DaysBack(monday); got != 0 {
		t.Fatalf("cutoff mode: got %d, want 0", got)
	}

	fixed := WindowPolicy{Mode: WindowModeFixed, FixedDays: 3, Schedule: DefaultSchedule(loc)}
	if got := fixed.DaysBack(monday); got != 3 {
		t.Fatalf("fixed mode: got %d, want 3", got)
	}
}

func TestWindowStartAndDaysSince(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 2, 10, 15, 0, 0, loc) // Monday

	start := WindowStart(now, 3, loc)
	if start.Format("2006-01-02 15:04") != "2026-02-27 00:00" {
		t.Fatalf("unexpected window start: %s", start)
	}

	friday := time.Date(2026, 2, 27, 18, 0, 0, 0, loc)
	if got := DaysSince(now, friday, loc); got != 3 {
		t.Fatalf("DaysSince friday: got %d, want 3", got)
	}
	if got := DaysSince(now, now.Add(48*time.Hour), loc); got != 0 {
		t.Fatalf("DaysSince future: got %d, want 0", got)
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("14:30")
	if err != nil || h != 14 || m != 30 {
		t.Fatalf("ParseClock(14:30) = %d, %d, %v", h, m, err)
	}
	if _, _, err := ParseClock("25:00"); err == nil {
		t.Fatal("expected out of range error")
	}
	if _, _, err := ParseClock("noon"); err == nil {
		t.Fatal("expected parse error")
	}
}
