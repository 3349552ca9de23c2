// Package recurrence turns a ride's repeat policy into a cron schedule and
// computes upcoming occurrences of it.
//
// All calendar fields are taken in the engine's location. The same location
// is used for occurrence search and for display, so a ride created at 07:30
// in Vienna stays a 07:30 ride regardless of where the process runs.
package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	appLog "waymatcher/internal/log"
)

// DisplayLayout mirrors the de-AT locale: day.month.year, 24-hour time.
const DisplayLayout = "2.1.2006, 15:04:05"

// InvalidSchedule is shown instead of a date when a cron string cannot be
// evaluated.
const InvalidSchedule = "Invalid schedule"

// Schedule is a generated cron expression together with its next match.
type Schedule struct {
	CronExpression string
	NextExecution  time.Time
}

// Engine generates and evaluates ride schedules in a fixed location.
type Engine struct {
	loc    *time.Location
	parser cron.Parser
}

// NewEngine returns an Engine bound to loc. A nil loc means time.Local.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		loc: loc,
		parser: cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		),
	}
}

// Location returns the engine's time zone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// CronExpression maps a start time and policy to a five-field cron string.
// None yields "" (a one-off ride). Seconds are discarded.
func (e *Engine) CronExpression(start time.Time, policy Policy) (string, error) {
	if start.IsZero() {
		return "", ErrInvalidStart
	}
	t := start.In(e.loc)
	minute := strconv.Itoa(t.Minute())
	hour := strconv.Itoa(t.Hour())
	prefix := minute + " " + hour

	switch policy {
	case None:
		return "", nil
	case Daily:
		return prefix + " * * *", nil
	case Weekly:
		// time.Weekday already counts Sunday as 0, like cron.
		return prefix + " * * " + strconv.Itoa(int(t.Weekday())), nil
	case Monthly:
		return prefix + " " + strconv.Itoa(t.Day()) + " * *", nil
	case Yearly:
		return prefix + " " + strconv.Itoa(t.Day()) + " " + strconv.Itoa(int(t.Month())) + " *", nil
	case Weekdays:
		return prefix + " * * 1-5", nil
	case Weekends:
		return prefix + " * * 6,0", nil
	default:
		return "", &InvalidPolicyError{Value: policy}
	}
}

// NextExecution returns the first occurrence of the policy's schedule at or
// after the later of start and now, at minute precision. It reports false
// instead of an error when no occurrence can be computed (one-off rides,
// invalid input); the cause is logged.
func (e *Engine) NextExecution(start time.Time, policy Policy, now time.Time) (Schedule, bool) {
	expr, err := e.CronExpression(start, policy)
	if err != nil {
		appLog.Error("recurrence: cron generation failed", err, "policy", string(policy))
		return Schedule{}, false
	}
	if expr == "" {
		// One-off ride.
		return Schedule{}, false
	}

	sched, err := e.parser.Parse(expr)
	if err != nil {
		appLog.Error("recurrence: cron parse failed", err, "policy", string(policy), "cron", expr)
		return Schedule{}, false
	}

	from := start
	if now.After(from) {
		from = now
	}
	// One second before the minute so the minute itself is eligible.
	seed := truncateMinute(from.In(e.loc)).Add(-time.Second)

	next := sched.Next(seed)
	if next.IsZero() {
		appLog.Error("recurrence: no upcoming occurrence", errors.New("schedule exhausted"), "cron", expr)
		return Schedule{}, false
	}

	return Schedule{CronExpression: expr, NextExecution: next}, true
}

// Pretty renders the next occurrence of expr after now for display.
// It never fails; malformed input yields InvalidSchedule.
func (e *Engine) Pretty(expr string, now time.Time) string {
	next, err := e.Next(expr, now)
	if err != nil {
		appLog.Debug("recurrence: pretty schedule fallback", "cron", expr, "err", err)
		return InvalidSchedule
	}
	return next.Format(DisplayLayout)
}

// Next returns the first match of expr strictly after now, in the engine
// location.
func (e *Engine) Next(expr string, now time.Time) (time.Time, error) {
	sched, err := e.parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("recurrence: parse %q: %w", expr, err)
	}
	next := sched.Next(now.In(e.loc))
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("recurrence: %q has no upcoming occurrence", expr)
	}
	return next, nil
}

func truncateMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}
