package model

import "time"

// Address is a geocoded stop address as delivered by the backend.
type Address struct {
	City       string  `json:"city"`
	Street     string  `json:"street"`
	PostalCode string  `json:"postalCode"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// Stop is one waypoint of a ride, in travel order.
type Stop struct {
	ID      int64   `json:"stopId"`
	Address Address `json:"address"`
}

// RideEvent is a carpooling trip. It is read-only to the schedule and
// filter code; a refreshed list replaces the old one instead of mutating it.
type RideEvent struct {
	ID             int64     `json:"eventId"`
	Owner          string    `json:"owner"`
	Stops          []Stop    `json:"stops"`
	FreeSeats      int       `json:"freeSeats"`
	StartTimestamp time.Time `json:"startTimestamp"`

	// ScheduleID is set (and non-zero) for recurring rides.
	ScheduleID *int64 `json:"scheduleId"`
	// CronSchedule is the five-field cron expression of a recurring ride,
	// empty for one-off rides.
	CronSchedule string `json:"cronSchedule,omitempty"`
}

// StartStop returns the first stop, if any.
func (e RideEvent) StartStop() (Stop, bool) {
	if len(e.Stops) == 0 {
		return Stop{}, false
	}
	return e.Stops[0], true
}

// EndStop returns the last stop, if any. A single-stop ride starts and ends
// at the same stop.
func (e RideEvent) EndStop() (Stop, bool) {
	if len(e.Stops) == 0 {
		return Stop{}, false
	}
	return e.Stops[len(e.Stops)-1], true
}

// Label is the "{startCity} - {endCity}" caption shown on ride cards.
// It is empty when the ride has no stops.
func (e RideEvent) Label() string {
	start, ok := e.StartStop()
	if !ok {
		return ""
	}
	end, _ := e.EndStop()
	return start.Address.City + " - " + end.Address.City
}

// Recurring reports whether the ride has a non-zero schedule id.
func (e RideEvent) Recurring() bool {
	return e.ScheduleID != nil && *e.ScheduleID != 0
}
