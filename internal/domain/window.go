package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	WindowModeCutoff = "cutoff"
	WindowModeFixed  = "fixed"

	DefaultCutoffTime = "14:30"
	DefaultFixedDays  = 3
)

// Schedule is the weekly business-day cadence work-log windows are measured
// against. Work-log windows reach back to the previous cutoff boundary.
type Schedule struct {
	CutoffHour   int
	CutoffMinute int
	Location     *time.Location
}

func DefaultSchedule(loc *time.Location) Schedule {
	if loc == nil {
		loc = time.Local
	}
	return Schedule{CutoffHour: 14, CutoffMinute: 30, Location: loc}
}

// lookbackDays is indexed by Monday-based weekday, then [before, at/after] cutoff.
var lookbackDays = [7][2]int{
	{3, 0}, // Monday
	{1, 1}, // Tuesday
	{2, 0}, // Wednesday
	{1, 1}, // Thursday
	{2, 0}, // Friday
	{1, 1}, // Saturday
	{2, 2}, // Sunday
}

// ResolveWindow returns how many days back a work-log query made at now must
// reach. A query made exactly at the cutoff counts as after it.
func ResolveWindow(now time.Time, sched Schedule) int {
	if sched.Location != nil {
		now = now.In(sched.Location)
	}
	weekday := (int(now.Weekday()) + 6) % 7
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), sched.CutoffHour, sched.CutoffMinute, 0, 0, now.Location())
	half := 0
	if !now.Before(cutoff) {
		half = 1
	}
	return lookbackDays[weekday][half]
}

// WindowPolicy picks the days-back value for a query: either the cutoff
// table or a fixed constant.
type WindowPolicy struct {
	Mode      string
	FixedDays int
	Schedule  Schedule
}

func (p WindowPolicy) DaysBack(now time.Time) int {
	if strings.EqualFold(p.Mode, WindowModeFixed) {
		if p.FixedDays < 0 {
			return 0
		}
		return p.FixedDays
	}
	return ResolveWindow(now, p.Schedule)
}

// WindowStart returns midnight of the calendar day daysBack days before now,
// in loc.
func WindowStart(now time.Time, daysBack int, loc *time.Location) time.Time {
	if loc != nil {
		now = now.In(loc)
	}
	return time.Date(now.Year(), now.Month(), now.Day()-daysBack, 0, 0, 0, 0, now.Location())
}

// DaysSince counts calendar days from day to now in loc. Dates in the future
// count as zero.
func DaysSince(now, day time.Time, loc *time.Location) int {
	today := WindowStart(now, 0, loc)
	start := WindowStart(day, 0, loc)
	if !start.Before(today) {
		return 0
	}
	days := 0
	for d := start; d.Before(today); d = d.AddDate(0, 0, 1) {
		days++
	}
	return days
}

func ParseClock(s string) (int, int, error) {
	var hour, min int
	_, err := fmt.Sscanf(s, "%d:%d", &hour, &min)
	if err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("time out of range: %02d:%02d", hour, min)
	}
	return hour, min, nil
}
