package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for _, s := range []string{"day", "4day", "week", "month"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}

	_, err := ParseMode("year")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid view mode")
}

func TestDayOf_UsesLocalComponents(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 23:30 local is already the next day in UTC; DayOf must stay local.
	late := time.Date(2026, time.August, 25, 23, 30, 0, 0, loc)
	assert.Equal(t, Day{Year: 2026, Month: time.August, Date: 25}, DayOf(late))
	assert.Equal(t, Day{Year: 2026, Month: time.August, Date: 26}, DayOf(late.In(time.UTC)))
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, time.August, 26, 0, 1, 0, 0, time.UTC)
	b := time.Date(2026, time.August, 26, 23, 59, 0, 0, time.UTC)
	c := time.Date(2026, time.August, 27, 0, 0, 0, 0, time.UTC)

	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(b, c))
}

func TestDay_AddDays(t *testing.T) {
	d := Day{Year: 2026, Month: time.August, Date: 30}
	assert.Equal(t, Day{Year: 2026, Month: time.September, Date: 1}, d.AddDays(2))
	assert.Equal(t, Day{Year: 2026, Month: time.August, Date: 28}, d.AddDays(-2))

	// Year boundary.
	nye := Day{Year: 2026, Month: time.December, Date: 31}
	assert.Equal(t, Day{Year: 2027, Month: time.January, Date: 1}, nye.AddDays(1))
}

func TestDay_AddMonthsClamps(t *testing.T) {
	jan31 := Day{Year: 2026, Month: time.January, Date: 31}
	assert.Equal(t, Day{Year: 2026, Month: time.February, Date: 28}, jan31.AddMonths(1))

	// Leap year February keeps the 29th.
	jan31leap := Day{Year: 2028, Month: time.January, Date: 31}
	assert.Equal(t, Day{Year: 2028, Month: time.February, Date: 29}, jan31leap.AddMonths(1))

	mid := Day{Year: 2026, Month: time.August, Date: 15}
	assert.Equal(t, Day{Year: 2026, Month: time.September, Date: 15}, mid.AddMonths(1))
	assert.Equal(t, Day{Year: 2025, Month: time.December, Date: 15}, mid.AddMonths(-8))
}

func TestDay_WithDate(t *testing.T) {
	feb := Day{Year: 2026, Month: time.February, Date: 10}
	assert.Equal(t, Day{Year: 2026, Month: time.February, Date: 28}, feb.WithDate(31))
	assert.Equal(t, Day{Year: 2026, Month: time.February, Date: 15}, feb.WithDate(15))
	assert.Equal(t, Day{Year: 2026, Month: time.February, Date: 1}, feb.WithDate(0))

	feb28 := Day{Year: 2028, Month: time.February, Date: 1}
	assert.Equal(t, Day{Year: 2028, Month: time.February, Date: 29}, feb28.WithDate(31))
}

func TestDay_Weekday(t *testing.T) {
	assert.Equal(t, time.Saturday, Day{Year: 2026, Month: time.August, Date: 29}.Weekday())
	assert.Equal(t, time.Sunday, Day{Year: 2026, Month: time.August, Date: 23}.Weekday())
}

func TestDay_StringAndParse(t *testing.T) {
	d := Day{Year: 2026, Month: time.August, Date: 5}
	assert.Equal(t, "2026-08-05", d.String())

	got, err := ParseDay("2026-08-05")
	require.NoError(t, err)
	assert.Equal(t, d, got)

	_, err = ParseDay("08/05/2026")
	require.Error(t, err)
}

func TestDay_JSONRoundTrip(t *testing.T) {
	d := Day{Year: 2026, Month: time.August, Date: 26}

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-08-26"`, string(b))

	var got Day
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, d, got)

	assert.Error(t, json.Unmarshal([]byte(`42`), &got))
}

func TestDay_TimeMidnight(t *testing.T) {
	d := Day{Year: 2026, Month: time.August, Date: 26}
	got := d.Time(time.UTC)
	assert.Equal(t, time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC), got)
}
