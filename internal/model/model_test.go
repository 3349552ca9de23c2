package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func stop(city string) Stop {
	return Stop{Address: Address{City: city}}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name  string
		stops []Stop
		want  string
	}{
		{name: "no stops", stops: nil, want: ""},
		{name: "single stop", stops: []Stop{stop("Graz")}, want: "Graz - Graz"},
		{name: "two stops", stops: []Stop{stop("Vienna"), stop("Linz")}, want: "Vienna - Linz"},
		{name: "via stop", stops: []Stop{stop("Vienna"), stop("St. Pölten"), stop("Linz")}, want: "Vienna - Linz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RideEvent{Stops: tt.stops}.Label())
		})
	}
}

func TestRecurring(t *testing.T) {
	zero, five := int64(0), int64(5)
	assert.False(t, RideEvent{}.Recurring())
	assert.False(t, RideEvent{ScheduleID: &zero}.Recurring())
	assert.True(t, RideEvent{ScheduleID: &five}.Recurring())
}
