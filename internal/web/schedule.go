package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"waymatcher/internal/recurrence"
)

const (
	defaultOccurrenceDays = 14
	maxOccurrenceDays     = 366
)

type scheduleResponse struct {
	Policy         recurrence.Policy `json:"policy"`
	CronExpression string            `json:"cron_expression"`
	RRule          string            `json:"rrule,omitempty"`
	NextExecution  *time.Time        `json:"next_execution"`
	Display        string            `json:"display,omitempty"`
}

type occurrencesResponse struct {
	Policy      recurrence.Policy `json:"policy"`
	From        time.Time         `json:"from"`
	To          time.Time         `json:"to"`
	Occurrences []time.Time       `json:"occurrences"`
}

// handleSchedule computes the cron expression and next execution for a
// start time and repeat policy.
//
// GET /api/schedule?start=2025-05-15T10:30&policy=weekly
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	start, policy, ok := s.scheduleInput(w, r)
	if !ok {
		return
	}

	expr, err := s.engine.CronExpression(start, policy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rule, err := s.engine.RRule(start, policy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := scheduleResponse{Policy: policy, CronExpression: expr, RRule: rule}
	if sched, ok := s.engine.NextExecution(start, policy, s.now()); ok {
		next := sched.NextExecution
		resp.NextExecution = &next
		resp.Display = next.Format(recurrence.DisplayLayout)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePretty renders a stored cron string for display.
//
// GET /api/schedule/pretty?cron=30+10+*+*+4
func (s *Server) handlePretty(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"display": s.engine.Pretty(r.URL.Query().Get("cron"), s.now()),
	})
}

// handleOccurrences lists upcoming occurrences within the next days.
//
// GET /api/schedule/occurrences?start=...&policy=weekdays&days=14
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	start, policy, ok := s.scheduleInput(w, r)
	if !ok {
		return
	}

	days := parseIntDefault(r.URL.Query().Get("days"), defaultOccurrenceDays)
	if days <= 0 {
		days = defaultOccurrenceDays
	}
	if days > maxOccurrenceDays {
		days = maxOccurrenceDays
	}

	from := s.now().In(s.engine.Location())
	if start.After(from) {
		from = start
	}
	to := from.AddDate(0, 0, days)

	occ, err := s.engine.Occurrences(start, policy, from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if occ == nil {
		occ = []time.Time{}
	}
	writeJSON(w, http.StatusOK, occurrencesResponse{
		Policy:      policy,
		From:        from,
		To:          to,
		Occurrences: occ,
	})
}

// handlePolicies lists the supported repeat policies.
func (s *Server) handlePolicies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]recurrence.Policy{"policies": recurrence.Policies})
}

func (s *Server) scheduleInput(w http.ResponseWriter, r *http.Request) (time.Time, recurrence.Policy, bool) {
	q := r.URL.Query()

	raw := q.Get("start")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "start is required")
		return time.Time{}, "", false
	}
	start, err := parseTime(raw, s.engine.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DDTHH:MM")
		return time.Time{}, "", false
	}

	policy, err := recurrence.ParsePolicy(q.Get("policy"))
	if err != nil {
		var invalid *recurrence.InvalidPolicyError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return time.Time{}, "", false
		}
		writeError(w, http.StatusInternalServerError, "failed to parse policy")
		return time.Time{}, "", false
	}
	return start, policy, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
