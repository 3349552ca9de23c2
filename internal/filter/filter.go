// Package filter narrows a snapshot of ride events down to the rides that
// match a set of user-chosen criteria.
package filter

import (
	"strings"
	"time"

	"waymatcher/internal/model"
)

// Criteria holds the active filter controls. The zero value matches every
// ride. Zero times and empty strings mean "not set".
type Criteria struct {
	OnlyRepeating bool
	StartsBefore  time.Time
	StartsAfter   time.Time
	StartLocation string
	EndLocation   string
	// FreeSeats keeps rides with at most this many free seats; 0 disables it.
	FreeSeats   int
	QuickSearch string
}

// IsZero reports whether no criterion is active.
func (c Criteria) IsZero() bool {
	return c == Criteria{}
}

// Events returns the rides that match every active criterion, in input
// order. The input slice is never modified; the result is a new slice.
func Events(events []model.RideEvent, c Criteria) []model.RideEvent {
	out := make([]model.RideEvent, 0, len(events))
	for _, ev := range events {
		if Match(ev, c) {
			out = append(out, ev)
		}
	}
	return out
}

// Match reports whether a single ride satisfies c.
func Match(ev model.RideEvent, c Criteria) bool {
	start, hasStart := ev.StartStop()
	end, hasEnd := ev.EndStop()

	if c.StartLocation != "" && (!hasStart || !containsFold(start.Address.City, c.StartLocation)) {
		return false
	}
	if c.EndLocation != "" && (!hasEnd || !containsFold(end.Address.City, c.EndLocation)) {
		return false
	}
	if !c.StartsBefore.IsZero() && !ev.StartTimestamp.Before(c.StartsBefore) {
		return false
	}
	if !c.StartsAfter.IsZero() && !ev.StartTimestamp.After(c.StartsAfter) {
		return false
	}
	if c.FreeSeats != 0 && ev.FreeSeats > c.FreeSeats {
		return false
	}
	if c.QuickSearch != "" && (!hasStart || !containsFold(ev.Label(), c.QuickSearch)) {
		return false
	}
	if c.OnlyRepeating && !ev.Recurring() {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
