package recurrence

import (
	"errors"
	"fmt"
	"strings"
)

// Policy is the repeat pattern a user picks for a ride.
type Policy string

const (
	None     Policy = "none"
	Daily    Policy = "daily"
	Weekly   Policy = "weekly"
	Monthly  Policy = "monthly"
	Yearly   Policy = "yearly"
	Weekdays Policy = "weekdays"
	Weekends Policy = "weekends"
)

// Policies lists every supported policy in display order.
var Policies = []Policy{None, Daily, Weekly, Monthly, Yearly, Weekdays, Weekends}

// ErrInvalidStart is returned for a zero start timestamp.
var ErrInvalidStart = errors.New("recurrence: invalid start timestamp")

// InvalidPolicyError reports a policy value outside the supported set.
type InvalidPolicyError struct {
	Value Policy
}

func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("recurrence: invalid policy %q", string(e.Value))
}

// Valid reports whether p is one of Policies.
func (p Policy) Valid() bool {
	for _, known := range Policies {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePolicy parses a policy name case-insensitively. An empty string is
// treated as None.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return None, nil
	}
	if !p.Valid() {
		return "", &InvalidPolicyError{Value: Policy(s)}
	}
	return p, nil
}
