package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "waymatcher/internal/log"
	"waymatcher/internal/model"
	"waymatcher/internal/recurrence"
)

const localTimestampLayout = "20060102T150405"

// uidNamespace scopes ride UIDs so they stay stable across exports.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://waymatcher/rides"))

// Export renders rides as a VCALENDAR feed. Recurring rides whose cron
// schedule maps to a known policy carry an RRULE; start times are written in
// the engine's time zone so weekly/daily rules survive DST changes.
func Export(events []model.RideEvent, engine *recurrence.Engine, now time.Time) string {
	loc := engine.Location()

	cal := ical.NewCalendarFor("WayMatcher")
	cal.SetMethod(ical.MethodPublish)
	cal.SetName("WayMatcher rides")
	cal.SetXWRTimezone(loc.String())
	addTimezone(cal, loc, now.In(loc).Year())

	for _, ev := range events {
		if ev.StartTimestamp.IsZero() {
			appLog.Debug("ics export: skipping ride without start", "event_id", ev.ID)
			continue
		}

		vev := cal.AddEvent(UID(ev.ID))
		vev.SetDtStampTime(now)
		vev.SetProperty(ical.ComponentPropertyDtStart,
			ev.StartTimestamp.In(loc).Format(localTimestampLayout),
			&ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{loc.String()}},
		)
		vev.SetSummary(summary(ev))
		if where := location(ev); where != "" {
			vev.SetLocation(where)
		}
		vev.SetDescription(description(ev))

		if rule := rruleFor(ev, engine); rule != "" {
			vev.AddRrule(rule)
		}
	}

	return cal.Serialize()
}

// UID returns the stable iCalendar UID of a ride.
func UID(eventID int64) string {
	return uuid.NewSHA1(uidNamespace, []byte(strconv.FormatInt(eventID, 10))).String() + "@waymatcher"
}

func rruleFor(ev model.RideEvent, engine *recurrence.Engine) string {
	if !ev.Recurring() || ev.CronSchedule == "" {
		return ""
	}
	policy, err := recurrence.DetectPolicy(ev.CronSchedule)
	if err != nil {
		appLog.Error("ics export: unknown schedule, exporting single occurrence", err, "event_id", ev.ID)
		return ""
	}
	rule, err := engine.RRule(ev.StartTimestamp, policy)
	if err != nil {
		appLog.Error("ics export: rrule failed", err, "event_id", ev.ID)
		return ""
	}
	return rule
}

func summary(ev model.RideEvent) string {
	if label := ev.Label(); label != "" {
		return label
	}
	return fmt.Sprintf("Ride %d", ev.ID)
}

func location(ev model.RideEvent) string {
	start, ok := ev.StartStop()
	if !ok {
		return ""
	}
	a := start.Address
	parts := make([]string, 0, 2)
	if a.Street != "" {
		parts = append(parts, a.Street)
	}
	city := strings.TrimSpace(a.PostalCode + " " + a.City)
	if city != "" {
		parts = append(parts, city)
	}
	return strings.Join(parts, ", ")
}

func description(ev model.RideEvent) string {
	lines := []string{"Free seats: " + strconv.Itoa(ev.FreeSeats)}
	if ev.Owner != "" {
		lines = append(lines, "Driver: "+ev.Owner)
	}
	if len(ev.Stops) > 2 {
		via := make([]string, 0, len(ev.Stops)-2)
		for _, s := range ev.Stops[1 : len(ev.Stops)-1] {
			via = append(via, s.Address.City)
		}
		lines = append(lines, "Via: "+strings.Join(via, ", "))
	}
	return strings.Join(lines, "\n")
}
