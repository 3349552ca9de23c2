package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"waymatcher/internal/model"
)

func TestSession_RecomputesFromSnapshot(t *testing.T) {
	events := []model.RideEvent{
		ride(1, "Vienna", "Graz"),
		ride(2, "Salzburg", "Linz"),
		ride(3, "Vienna", "Linz"),
	}
	s := NewSession(events)
	assert.Equal(t, events, s.Results())

	assert.Equal(t, []int64{1, 3}, ids(s.SetStartLocation("vienna")))
	assert.Equal(t, []int64{3}, ids(s.SetEndLocation("linz")))

	// Widening a field brings back rides dropped earlier.
	assert.Equal(t, []int64{2, 3}, ids(s.SetStartLocation("")))
	assert.Equal(t, Criteria{EndLocation: "linz"}, s.Criteria())
}

func TestSession_Reset(t *testing.T) {
	events := []model.RideEvent{ride(1, "Vienna"), ride(2, "Graz")}
	s := NewSession(events)

	s.SetQuickSearch("graz")
	s.SetFreeSeats(1)
	s.SetOnlyRepeating(true)
	assert.Empty(t, s.Results())

	got := s.Reset()
	assert.Equal(t, events, got)
	assert.True(t, s.Criteria().IsZero())
}

func TestSession_SnapshotIsCaptured(t *testing.T) {
	events := []model.RideEvent{ride(1, "Vienna"), ride(2, "Graz")}
	s := NewSession(events)

	// The caller reusing its slice must not leak into the session.
	events[0] = ride(7, "Innsbruck")

	assert.Equal(t, []int64{1, 2}, ids(s.Snapshot()))
	assert.Equal(t, []int64{1}, ids(s.SetStartLocation("vienna")))
}

func TestSession_TimeBounds(t *testing.T) {
	late := ride(2, "A")
	late.StartTimestamp = base.AddDate(0, 0, 1)
	s := NewSession([]model.RideEvent{ride(1, "A"), late})

	assert.Equal(t, []int64{2}, ids(s.SetStartsAfter(base)))
	assert.Empty(t, s.SetStartsBefore(base))
	assert.Equal(t, []int64{1, 2}, ids(s.Apply(Criteria{})))
}

func TestSession_ResultsDoNotAliasSnapshot(t *testing.T) {
	s := NewSession([]model.RideEvent{ride(1, "Vienna"), ride(2, "Graz")})

	s.Results()[0].ID = 99
	s.Snapshot()[1].ID = 98
	assert.Equal(t, []int64{1, 2}, ids(s.Results()))

	got := s.Reset()
	got[0].ID = 97
	assert.Equal(t, []int64{1, 2}, ids(s.Reset()))
	assert.Equal(t, []int64{1, 2}, ids(s.Snapshot()))
}
