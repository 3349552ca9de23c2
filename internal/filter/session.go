package filter

import (
	"slices"
	"time"

	"waymatcher/internal/model"
)

// Session is one filtering pass over a captured snapshot. Every change
// recomputes the result from the original snapshot, never from the previous
// result. When the upstream list is refreshed, start a new Session.
//
// A Session is not safe for concurrent use.
type Session struct {
	snapshot []model.RideEvent
	criteria Criteria
	results  []model.RideEvent
}

// NewSession captures a private copy of events.
func NewSession(events []model.RideEvent) *Session {
	snap := slices.Clone(events)
	return &Session{
		snapshot: snap,
		results:  slices.Clone(snap),
	}
}

// Snapshot returns a copy of the captured events.
func (s *Session) Snapshot() []model.RideEvent {
	return slices.Clone(s.snapshot)
}

// Criteria returns the current criteria.
func (s *Session) Criteria() Criteria {
	return s.criteria
}

// Results returns a copy of the rides matching the current criteria.
func (s *Session) Results() []model.RideEvent {
	return slices.Clone(s.results)
}

// Apply replaces all criteria at once. The returned slice is owned by the
// caller.
func (s *Session) Apply(c Criteria) []model.RideEvent {
	s.criteria = c
	s.results = Events(s.snapshot, c)
	return slices.Clone(s.results)
}

// Reset clears every criterion and restores the full snapshot.
func (s *Session) Reset() []model.RideEvent {
	return s.Apply(Criteria{})
}

// SetOnlyRepeating toggles the recurring-rides-only criterion.
func (s *Session) SetOnlyRepeating(v bool) []model.RideEvent {
	c := s.criteria
	c.OnlyRepeating = v
	return s.Apply(c)
}

// SetStartsBefore sets the exclusive upper bound on the start time; zero clears it.
func (s *Session) SetStartsBefore(t time.Time) []model.RideEvent {
	c := s.criteria
	c.StartsBefore = t
	return s.Apply(c)
}

// SetStartsAfter sets the exclusive lower bound on the start time; zero clears it.
func (s *Session) SetStartsAfter(t time.Time) []model.RideEvent {
	c := s.criteria
	c.StartsAfter = t
	return s.Apply(c)
}

// SetStartLocation sets the start-city substring; empty clears it.
func (s *Session) SetStartLocation(v string) []model.RideEvent {
	c := s.criteria
	c.StartLocation = v
	return s.Apply(c)
}

// SetEndLocation sets the end-city substring; empty clears it.
func (s *Session) SetEndLocation(v string) []model.RideEvent {
	c := s.criteria
	c.EndLocation = v
	return s.Apply(c)
}

// SetFreeSeats sets the free-seat ceiling; 0 clears it.
func (s *Session) SetFreeSeats(n int) []model.RideEvent {
	c := s.criteria
	c.FreeSeats = n
	return s.Apply(c)
}

// SetQuickSearch sets the free-text search over the ride label; empty clears it.
func (s *Session) SetQuickSearch(v string) []model.RideEvent {
	c := s.criteria
	c.QuickSearch = v
	return s.Apply(c)
}
