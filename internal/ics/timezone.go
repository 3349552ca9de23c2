package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
)

// observanceEpoch is the year observance onsets are anchored to. Each onset
// carries a yearly RRULE, so any ride start after it resolves.
const observanceEpoch = 1970

var rruleWeekdays = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

type transition struct {
	at       time.Time // first instant in the new offset
	from, to int
}

// addTimezone appends the VTIMEZONE referenced by every TZID=loc in the feed.
// The rules are derived from loc's transitions in year; a zone without
// transitions gets a single STANDARD observance.
func addTimezone(cal *ical.Calendar, loc *time.Location, year int) {
	tz := cal.AddTimezone(loc.String())

	trans := transitions(loc, year)
	if len(trans) == 0 {
		name, off := time.Date(year, time.January, 1, 0, 0, 0, 0, loc).Zone()
		std := tz.AddStandard()
		setObservance(&std.ComponentBase, fmt.Sprintf("%d0101T000000", observanceEpoch), off, off, name, "")
		return
	}

	for _, tr := range trans {
		var base *ical.ComponentBase
		if tr.at.In(loc).IsDST() {
			d := &ical.Daylight{}
			tz.Components = append(tz.Components, d)
			base = &d.ComponentBase
		} else {
			base = &tz.AddStandard().ComponentBase
		}

		// Onset is given in the wall clock of the offset being left.
		wall := tr.at.In(time.FixedZone("", tr.from))
		n := nthWeekday(wall)
		onset := weekdayInMonth(observanceEpoch, wall.Month(), n, wall.Weekday())
		dtstart := fmt.Sprintf("%s%s", onset.Format("20060102"), wall.Format("T150405"))
		name, _ := tr.at.In(loc).Zone()
		rule := fmt.Sprintf("FREQ=YEARLY;BYMONTH=%d;BYDAY=%d%s", int(wall.Month()), n, rruleWeekdays[wall.Weekday()])

		setObservance(base, dtstart, tr.from, tr.to, name, rule)
	}
}

func setObservance(cb *ical.ComponentBase, dtstart string, from, to int, name, rule string) {
	cb.SetProperty(ical.ComponentPropertyDtStart, dtstart)
	cb.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetfrom), formatOffset(from))
	cb.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetto), formatOffset(to))
	if name != "" {
		cb.SetProperty(ical.ComponentProperty(ical.PropertyTzname), name)
	}
	if rule != "" {
		cb.SetProperty(ical.ComponentPropertyRrule, rule)
	}
}

// transitions lists offset changes of loc within the calendar year.
func transitions(loc *time.Location, year int) []transition {
	var out []transition
	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := t.AddDate(1, 0, 0)
	_, prev := t.In(loc).Zone()

	for t.Before(end) {
		next := t.Add(time.Hour)
		_, off := next.In(loc).Zone()
		if off != prev {
			out = append(out, transition{at: firstInOffset(loc, t, next, off), from: prev, to: off})
			prev = off
		}
		t = next
	}
	return out
}

// firstInOffset narrows (lo, hi] to the first second observing offset off.
func firstInOffset(loc *time.Location, lo, hi time.Time, off int) time.Time {
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2).Truncate(time.Second)
		if _, o := mid.In(loc).Zone(); o == off {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}

// nthWeekday returns the ordinal of t's weekday in its month, or -1 when it
// is the last one.
func nthWeekday(t time.Time) int {
	lastDay := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if t.Day()+7 > lastDay {
		return -1
	}
	return (t.Day()-1)/7 + 1
}

// weekdayInMonth returns the n-th wd of month in year (n == -1 for the last).
func weekdayInMonth(year int, month time.Month, n int, wd time.Weekday) time.Time {
	if n < 0 {
		last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
		shift := (int(last.Weekday()) - int(wd) + 7) % 7
		return last.AddDate(0, 0, -shift)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	shift := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, shift+(n-1)*7)
}

func formatOffset(sec int) string {
	sign := '+'
	if sec < 0 {
		sign = '-'
		sec = -sec
	}
	return fmt.Sprintf("%c%02d%02d", sign, sec/3600, (sec%3600)/60)
}
