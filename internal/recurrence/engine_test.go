package recurrence

import (
	"bytes"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appLog "waymatcher/internal/log"
)

func vienna(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Vienna")
	require.NoError(t, err)
	return loc
}

func TestEngine_CronExpression(t *testing.T) {
	loc := vienna(t)
	engine := NewEngine(loc)

	// Thursday, 15 May 2025 10:30.
	start := time.Date(2025, time.May, 15, 10, 30, 0, 0, loc)

	tests := []struct {
		policy Policy
		want   string
	}{
		{None, ""},
		{Daily, "30 10 * * *"},
		{Weekly, "30 10 * * 4"},
		{Monthly, "30 10 15 * *"},
		{Yearly, "30 10 15 5 *"},
		{Weekdays, "30 10 * * 1-5"},
		{Weekends, "30 10 * * 6,0"},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			got, err := engine.CronExpression(start, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := engine.CronExpression(start, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestEngine_CronExpression_MinuteAndHourFollowStart(t *testing.T) {
	loc := vienna(t)
	engine := NewEngine(loc)

	base := time.Date(2025, time.January, 1, 0, 7, 0, 0, loc)
	for i := 0; i < 48; i++ {
		start := base.Add(time.Duration(i) * 97 * time.Minute)
		for _, p := range Policies {
			if p == None {
				continue
			}
			expr, err := engine.CronExpression(start, p)
			require.NoError(t, err)
			fields := strings.Fields(expr)
			require.Len(t, fields, 5, expr)
			assert.Equal(t, strconv.Itoa(start.Minute()), fields[0])
			assert.Equal(t, strconv.Itoa(start.Hour()), fields[1])
		}
	}
}

func TestEngine_CronExpression_WeeklyUsesSundayZero(t *testing.T) {
	loc := vienna(t)
	engine := NewEngine(loc)

	// Monday 12 May 2025 through Sunday 18 May 2025.
	for day := 12; day <= 18; day++ {
		start := time.Date(2025, time.May, day, 8, 0, 0, 0, loc)
		expr, err := engine.CronExpression(start, Weekly)
		require.NoError(t, err)

		want := strconv.Itoa(day - 11) // ISO weekday
		if start.Weekday() == time.Sunday {
			want = "0"
		}
		assert.Equal(t, "0 8 * * "+want, expr, start.Weekday().String())
	}
}

func TestEngine_CronExpression_DiscardsSeconds(t *testing.T) {
	loc := vienna(t)
	engine := NewEngine(loc)

	a, err := engine.CronExpression(time.Date(2025, time.May, 15, 10, 30, 0, 0, loc), Yearly)
	require.NoError(t, err)
	b, err := engine.CronExpression(time.Date(2025, time.May, 15, 10, 30, 59, 999, loc), Yearly)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEngine_CronExpression_UsesEngineLocation(t *testing.T) {
	engine := NewEngine(vienna(t))

	// 08:30 UTC is 10:30 in Vienna during summer time.
	start := time.Date(2025, time.May, 15, 8, 30, 0, 0, time.UTC)
	expr, err := engine.CronExpression(start, Daily)
	require.NoError(t, err)
	assert.Equal(t, "30 10 * * *", expr)

	// 23:15 UTC on 31 Dec is already 1 Jan in Vienna.
	start = time.Date(2024, time.December, 31, 23, 15, 0, 0, time.UTC)
	expr, err = engine.CronExpression(start, Yearly)
	require.NoError(t, err)
	assert.Equal(t, "15 0 1 1 *", expr)
}

func TestEngine_CronExpression_Errors(t *testing.T) {
	engine := NewEngine(vienna(t))

	_, err := engine.CronExpression(time.Time{}, Daily)
	assert.ErrorIs(t, err, ErrInvalidStart)

	_, err = engine.CronExpression(time.Now(), Policy("fortnightly"))
	var invalid *InvalidPolicyError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, Policy("fortnightly"), invalid.Value)
	assert.Contains(t, err.Error(), "fortnightly")
}

func TestEngine_NextExecution(t *testing.T) {
	loc := vienna(t)
	engine := NewEngine(loc)

	at := func(y int, m time.Month, d, h, min int) time.Time {
		return time.Date(y, m, d, h, min, 0, 0, loc)
	}
	start := at(2025, time.May, 15, 10, 30) // Thursday

	tests := []struct {
		name   string
		start  time.Time
		policy Policy
		now    time.Time
		want   time.Time
	}{
		{"daily start is eligible", start, Daily, at(2025, time.May, 1, 0, 0), start},
		{"daily after start", start, Daily, at(2025, time.May, 20, 12, 0), at(2025, time.May, 21, 10, 30)},
		{"daily same minute as now", start, Daily, at(2025, time.May, 20, 10, 30), at(2025, time.May, 20, 10, 30)},
		{"weekly", start, Weekly, at(2025, time.May, 17, 9, 0), at(2025, time.May, 22, 10, 30)},
		{"weekdays from saturday start", at(2025, time.May, 17, 10, 30), Weekdays, at(2025, time.May, 1, 0, 0), at(2025, time.May, 19, 10, 30)},
		{"weekends from thursday start", start, Weekends, at(2025, time.May, 1, 0, 0), at(2025, time.May, 17, 10, 30)},
		{"monthly skips short months", at(2025, time.January, 31, 10, 0), Monthly, at(2025, time.February, 1, 0, 0), at(2025, time.March, 31, 10, 0)},
		{"yearly", start, Yearly, at(2025, time.June, 1, 0, 0), at(2026, time.May, 15, 10, 30)},
		{"yearly leap day", at(2024, time.February, 29, 6, 0), Yearly, at(2024, time.March, 1, 0, 0), at(2028, time.February, 29, 6, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := engine.NextExecution(tt.start, tt.policy, tt.now)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got.NextExecution), "want %s, got %s", tt.want, got.NextExecution)
			assert.Equal(t, loc, got.NextExecution.Location())

			expr, err := engine.CronExpression(tt.start, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, expr, got.CronExpression)
		})
	}
}

func TestEngine_NextExecution_DailyIsFirstDayAtOrAfterStart(t *testing.T) {
	loc := vienna(t)
	engine := NewEngine(loc)

	base := time.Date(2025, time.March, 28, 0, 0, 0, 0, loc)
	for i := 0; i < 72; i++ {
		start := base.Add(time.Duration(i) * 61 * time.Minute)
		got, ok := engine.NextExecution(start, Daily, start.Add(-time.Hour))
		require.True(t, ok)
		next := got.NextExecution
		assert.Equal(t, start.Hour(), next.Hour(), start.String())
		assert.Equal(t, start.Minute(), next.Minute(), start.String())
		assert.False(t, next.Before(start))
		assert.True(t, next.Before(start.Add(25*time.Hour)))
	}
}

func TestEngine_NextExecution_Unavailable(t *testing.T) {
	engine := NewEngine(vienna(t))
	now := time.Now()

	_, ok := engine.NextExecution(now, None, now)
	assert.False(t, ok)

	_, ok = engine.NextExecution(now, Policy("hourly"), now)
	assert.False(t, ok)

	_, ok = engine.NextExecution(time.Time{}, Daily, now)
	assert.False(t, ok)
}

func TestEngine_Pretty(t *testing.T) {
	loc := vienna(t)
	engine := NewEngine(loc)

	morning := time.Date(2025, time.May, 15, 9, 0, 0, 0, loc)
	assert.Equal(t, "15.5.2025, 10:30:00", engine.Pretty("30 10 * * *", morning))
	assert.Equal(t, "16.5.2025, 10:30:00", engine.Pretty("30 10 * * *", morning.Add(2*time.Hour)))
	assert.Equal(t, "15.5.2025, 10:30:00", engine.Pretty("30 10 * * *", morning.UTC()))
	assert.Equal(t, "1.1.2026, 07:05:00", engine.Pretty("5 7 1 1 *", morning))

	for _, bad := range []string{"", "bogus", "61 10 * * *", "30 10 * *", "30 10 31 2 *"} {
		assert.Equal(t, InvalidSchedule, engine.Pretty(bad, morning), bad)
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range Policies {
		got, err := ParsePolicy(strings.ToUpper(string(p)))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, None, got)

	_, err = ParsePolicy("biweekly")
	var invalid *InvalidPolicyError
	assert.ErrorAs(t, err, &invalid)
}

func TestEngine_NextExecution_OneOffIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr) })

	engine := NewEngine(vienna(t))
	now := time.Date(2025, time.May, 14, 12, 0, 0, 0, engine.Location())

	sched, ok := engine.NextExecution(now, None, now)
	assert.False(t, ok)
	assert.Equal(t, Schedule{}, sched)
	assert.NotContains(t, buf.String(), `"level":"error"`)
}
