package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waymatcher/internal/model"
)

var base = time.Date(2025, time.May, 15, 10, 30, 0, 0, time.UTC)

func ride(id int64, cities ...string) model.RideEvent {
	stops := make([]model.Stop, 0, len(cities))
	for i, c := range cities {
		stops = append(stops, model.Stop{ID: int64(i + 1), Address: model.Address{City: c}})
	}
	return model.RideEvent{ID: id, Stops: stops, FreeSeats: 3, StartTimestamp: base}
}

func ids(events []model.RideEvent) []int64 {
	out := make([]int64, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.ID)
	}
	return out
}

func schedule(id int64) *int64 {
	return &id
}

func TestEvents_DefaultCriteriaIsNoop(t *testing.T) {
	events := []model.RideEvent{
		ride(1, "Vienna", "Graz"),
		ride(2),
		ride(3, "Linz"),
	}
	got := Events(events, Criteria{})
	assert.Equal(t, events, got)
}

func TestEvents_StartLocation(t *testing.T) {
	events := []model.RideEvent{
		ride(1, "Vienna", "Graz"),
		ride(2, "Salzburg", "Vienna"),
		ride(3, "ViennaSuburb", "Linz"),
	}
	got := Events(events, Criteria{StartLocation: "Vienna"})
	assert.Equal(t, []int64{1, 3}, ids(got))

	got = Events(events, Criteria{StartLocation: "vIEnna"})
	assert.Equal(t, []int64{1, 3}, ids(got))
}

func TestEvents_EndLocationUsesLastStop(t *testing.T) {
	events := []model.RideEvent{
		ride(1, "Vienna", "Graz", "Klagenfurt"),
		ride(2, "Vienna", "Graz"),
		ride(3, "Graz"),
	}
	got := Events(events, Criteria{EndLocation: "graz"})
	assert.Equal(t, []int64{2, 3}, ids(got))
}

func TestEvents_MissingStopsNeverPanic(t *testing.T) {
	events := []model.RideEvent{ride(1), ride(2, "Vienna", "Linz")}

	assert.Equal(t, []int64{2}, ids(Events(events, Criteria{StartLocation: "v"})))
	assert.Equal(t, []int64{2}, ids(Events(events, Criteria{EndLocation: "l"})))
	assert.Equal(t, []int64{2}, ids(Events(events, Criteria{QuickSearch: " - "})))
	assert.Equal(t, []int64{1, 2}, ids(Events(events, Criteria{FreeSeats: 5})))
}

func TestEvents_TimeBoundsAreStrict(t *testing.T) {
	early := ride(1, "A", "B")
	early.StartTimestamp = base.Add(-time.Hour)
	exact := ride(2, "A", "B")
	late := ride(3, "A", "B")
	late.StartTimestamp = base.Add(time.Hour)
	events := []model.RideEvent{early, exact, late}

	assert.Equal(t, []int64{1}, ids(Events(events, Criteria{StartsBefore: base})))
	assert.Equal(t, []int64{3}, ids(Events(events, Criteria{StartsAfter: base})))
	assert.Empty(t, Events(events, Criteria{StartsAfter: base, StartsBefore: base}))

	// Instants compare independent of zone.
	vienna := time.FixedZone("CEST", 2*60*60)
	assert.Equal(t, []int64{1}, ids(Events(events, Criteria{StartsBefore: base.In(vienna)})))
}

func TestEvents_FreeSeatsIsCeiling(t *testing.T) {
	var events []model.RideEvent
	for seats := 0; seats <= 4; seats++ {
		ev := ride(int64(seats), "A", "B")
		ev.FreeSeats = seats
		events = append(events, ev)
	}
	assert.Equal(t, []int64{0, 1, 2}, ids(Events(events, Criteria{FreeSeats: 2})))
	assert.Len(t, Events(events, Criteria{FreeSeats: 0}), 5)
}

func TestEvents_QuickSearchMatchesLabel(t *testing.T) {
	events := []model.RideEvent{
		ride(1, "Vienna", "Graz"),
		ride(2, "Graz", "Vienna"),
		ride(3, "Linz", "Wels"),
	}
	assert.Equal(t, []int64{1}, ids(Events(events, Criteria{QuickSearch: "na - gr"})))
	assert.Equal(t, []int64{1, 2}, ids(Events(events, Criteria{QuickSearch: "GRAZ"})))
}

func TestEvents_OnlyRepeating(t *testing.T) {
	events := []model.RideEvent{ride(1, "A"), ride(2, "A"), ride(3, "A"), ride(4, "A")}
	events[0].ScheduleID = schedule(0)
	events[1].ScheduleID = schedule(5)
	events[2].ScheduleID = nil
	events[3].ScheduleID = schedule(3)

	got := Events(events, Criteria{OnlyRepeating: true})
	require.Len(t, got, 2)
	assert.Equal(t, int64(5), *got[0].ScheduleID)
	assert.Equal(t, int64(3), *got[1].ScheduleID)
}

func TestEvents_IsConjunctive(t *testing.T) {
	a := ride(1, "Vienna", "Graz")
	a.ScheduleID = schedule(9)
	b := ride(2, "Vienna", "Graz")
	c := ride(3, "Vienna", "Linz")
	c.ScheduleID = schedule(4)

	got := Events([]model.RideEvent{a, b, c}, Criteria{
		StartLocation: "vienna",
		EndLocation:   "graz",
		OnlyRepeating: true,
	})
	assert.Equal(t, []int64{1}, ids(got))
}

func TestEvents_DoesNotModifyInput(t *testing.T) {
	events := []model.RideEvent{ride(1, "Vienna"), ride(2, "Graz"), ride(3, "Vienna")}
	before := append([]model.RideEvent(nil), events...)

	got := Events(events, Criteria{StartLocation: "vienna"})
	require.Len(t, got, 2)
	got[0].ID = 99

	assert.Equal(t, before, events)
}
