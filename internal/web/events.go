package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"waymatcher/internal/filter"
	"waymatcher/internal/ics"
	appLog "waymatcher/internal/log"
	"waymatcher/internal/model"
)

// datetimeLocalLayout is what an HTML datetime-local input submits.
const datetimeLocalLayout = "2006-01-02T15:04"

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events          []eventDTO `json:"events"`
	Count           int        `json:"count"`
	Total           int        `json:"total"`
	FetchedAt       time.Time  `json:"fetched_at"`
	FromCache       bool       `json:"from_cache"`
	DisplayTimeZone string     `json:"display_timezone"`
}

type addressDTO struct {
	City       string  `json:"city"`
	Street     string  `json:"street,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// eventDTO is a JSON-friendly view of a ride.
type eventDTO struct {
	ID              int64        `json:"id"`
	Owner           string       `json:"owner"`
	Label           string       `json:"label"`
	Stops           []addressDTO `json:"stops"`
	FreeSeats       int          `json:"free_seats"`
	Start           time.Time    `json:"start"`
	ScheduleID      *int64       `json:"schedule_id"`
	CronSchedule    string       `json:"cron_schedule,omitempty"`
	ScheduleDisplay string       `json:"schedule_display,omitempty"`
}

// handleEvents returns the rides of the current snapshot that match the
// query's filter criteria.
//
// GET /api/events?start_location=&end_location=&starts_before=&starts_after=&free_seats=&only_repeating=&q=
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	crit, err := parseCriteria(r.URL.Query(), s.engine.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.store.Snapshot()
	matched := filter.Events(snap.Events, crit)
	now := s.now()

	dtos := make([]eventDTO, 0, len(matched))
	for _, ev := range matched {
		dtos = append(dtos, s.toDTO(ev, now))
	}

	appLog.Debug("api events", "total", len(snap.Events), "matched", len(matched))

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:          dtos,
		Count:           len(dtos),
		Total:           len(snap.Events),
		FetchedAt:       snap.FetchedAt,
		FromCache:       snap.FromCache,
		DisplayTimeZone: s.engine.Location().String(),
	})
}

// handleEventsICS serves the filtered rides as an iCalendar feed.
func (s *Server) handleEventsICS(w http.ResponseWriter, r *http.Request) {
	crit, err := parseCriteria(r.URL.Query(), s.engine.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	matched := filter.Events(s.store.Snapshot().Events, crit)
	body := ics.Export(matched, s.engine, s.now())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="waymatcher.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

type refreshResponse struct {
	EventCount int       `json:"event_count"`
	FetchedAt  time.Time `json:"fetched_at"`
	FromCache  bool      `json:"from_cache"`
}

// handleRefresh forces a backend refresh of the snapshot.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to refresh events")
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		EventCount: len(snap.Events),
		FetchedAt:  snap.FetchedAt,
		FromCache:  snap.FromCache,
	})
}

func (s *Server) toDTO(ev model.RideEvent, now time.Time) eventDTO {
	stops := make([]addressDTO, 0, len(ev.Stops))
	for _, st := range ev.Stops {
		stops = append(stops, addressDTO{
			City:       st.Address.City,
			Street:     st.Address.Street,
			PostalCode: st.Address.PostalCode,
			Latitude:   st.Address.Latitude,
			Longitude:  st.Address.Longitude,
		})
	}

	dto := eventDTO{
		ID:           ev.ID,
		Owner:        ev.Owner,
		Label:        ev.Label(),
		Stops:        stops,
		FreeSeats:    ev.FreeSeats,
		Start:        ev.StartTimestamp.In(s.engine.Location()),
		ScheduleID:   ev.ScheduleID,
		CronSchedule: ev.CronSchedule,
	}
	if ev.CronSchedule != "" {
		dto.ScheduleDisplay = s.engine.Pretty(ev.CronSchedule, now)
	}
	return dto
}

// parseCriteria maps query parameters onto filter criteria. Absent or empty
// parameters leave the criterion inactive.
func parseCriteria(q url.Values, loc *time.Location) (filter.Criteria, error) {
	var c filter.Criteria
	var err error

	c.StartLocation = strings.TrimSpace(q.Get("start_location"))
	c.EndLocation = strings.TrimSpace(q.Get("end_location"))
	c.QuickSearch = strings.TrimSpace(q.Get("q"))

	if v := q.Get("only_repeating"); v != "" {
		if c.OnlyRepeating, err = strconv.ParseBool(v); err != nil {
			return c, errors.New("only_repeating must be a boolean")
		}
	}
	if v := q.Get("free_seats"); v != "" {
		if c.FreeSeats, err = strconv.Atoi(v); err != nil || c.FreeSeats < 0 {
			return c, errors.New("free_seats must be a non-negative integer")
		}
	}
	if v := q.Get("starts_before"); v != "" {
		if c.StartsBefore, err = parseTime(v, loc); err != nil {
			return c, errors.New("starts_before must be RFC3339 or YYYY-MM-DDTHH:MM")
		}
	}
	if v := q.Get("starts_after"); v != "" {
		if c.StartsAfter, err = parseTime(v, loc); err != nil {
			return c, errors.New("starts_after must be RFC3339 or YYYY-MM-DDTHH:MM")
		}
	}
	return c, nil
}

// parseTime accepts RFC3339 or a zone-less datetime-local value, which is
// read in loc.
func parseTime(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation(datetimeLocalLayout, v, loc)
}
