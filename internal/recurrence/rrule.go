package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const defaultMaxOccurrences = 5000

// ErrUnrecognizedCron is returned by DetectPolicy for cron strings that were
// not produced by CronExpression.
var ErrUnrecognizedCron = errors.New("recurrence: cron expression does not match a policy")

// DetectPolicy is the inverse of CronExpression: it recognizes which policy
// produced expr. The empty string is None.
func DetectPolicy(expr string) (Policy, error) {
	if strings.TrimSpace(expr) == "" {
		return None, nil
	}
	f := strings.Fields(expr)
	if len(f) != 5 {
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedCron, expr)
	}
	if !inRange(f[0], 0, 59) || !inRange(f[1], 0, 23) {
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedCron, expr)
	}
	dom, month, dow := f[2], f[3], f[4]

	switch {
	case dom == "*" && month == "*" && dow == "*":
		return Daily, nil
	case dom == "*" && month == "*" && dow == "1-5":
		return Weekdays, nil
	case dom == "*" && month == "*" && dow == "6,0":
		return Weekends, nil
	case dom == "*" && month == "*" && inRange(dow, 0, 6):
		return Weekly, nil
	case inRange(dom, 1, 31) && month == "*" && dow == "*":
		return Monthly, nil
	case inRange(dom, 1, 31) && inRange(month, 1, 12) && dow == "*":
		return Yearly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnrecognizedCron, expr)
}

// RRule returns the RFC 5545 RRULE value (without the "RRULE:" prefix)
// equivalent to the policy's cron schedule. None yields "".
func (e *Engine) RRule(start time.Time, policy Policy) (string, error) {
	if policy == None {
		if start.IsZero() {
			return "", ErrInvalidStart
		}
		return "", nil
	}
	opt, err := e.rruleOption(start, policy)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// Occurrences expands the schedule into concrete start times within
// [from, to], inclusive on both ends. A one-off ride yields its start if it
// lies in the window.
func (e *Engine) Occurrences(start time.Time, policy Policy, from, to time.Time) ([]time.Time, error) {
	if to.Before(from) {
		return nil, errors.New("recurrence: window end is before window start")
	}
	if policy == None {
		if start.IsZero() {
			return nil, ErrInvalidStart
		}
		s := truncateMinute(start.In(e.loc))
		if s.Before(from) || s.After(to) {
			return []time.Time{}, nil
		}
		return []time.Time{s}, nil
	}

	opt, err := e.rruleOption(start, policy)
	if err != nil {
		return nil, err
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("recurrence: build rrule: %w", err)
	}

	from, to = from.In(e.loc), to.In(e.loc)
	out := []time.Time{}
	next := r.Iterator()
	for len(out) < defaultMaxOccurrences {
		occ, ok := next()
		if !ok || occ.After(to) {
			break
		}
		if occ.Before(from) {
			continue
		}
		out = append(out, occ)
	}
	return out, nil
}

func (e *Engine) rruleOption(start time.Time, policy Policy) (*rrule.ROption, error) {
	if start.IsZero() {
		return nil, ErrInvalidStart
	}
	t := truncateMinute(start.In(e.loc))
	opt := &rrule.ROption{Dtstart: t}

	switch policy {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{toRRuleWeekday(t.Weekday())}
	case Monthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{t.Day()}
	case Yearly:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(t.Month())}
		opt.Bymonthday = []int{t.Day()}
	case Weekdays:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}
	case Weekends:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rrule.SA, rrule.SU}
	default:
		return nil, &InvalidPolicyError{Value: policy}
	}
	return opt, nil
}

func toRRuleWeekday(d time.Weekday) rrule.Weekday {
	switch d {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

func inRange(field string, lo, hi int) bool {
	n, err := strconv.Atoi(field)
	if err != nil {
		return false
	}
	return n >= lo && n <= hi
}
