package view

import (
	"fmt"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famcal/internal/bucket"
	"famcal/internal/layout"
	"famcal/internal/model"
)

var testNow = time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)

// newTestController pins the clock and timezone so results are reproducible.
func newTestController(t *testing.T) *Controller {
	t.Helper()
	return New(Options{
		Location:     time.UTC,
		WeekStart:    time.Sunday,
		Layout:       layout.Options{HourHeight: 60, MinEventHeight: 20},
		MonthCellMax: 3,
		Now:          func() time.Time { return testNow },
	})
}

func rawTimed(id string, start string) model.RawEvent {
	return model.RawEvent{
		"id":    id,
		"title": id,
		"start": map[string]any{"dateTime": start},
	}
}

func entriesByID(res Result) map[string]model.LayoutEntry {
	out := make(map[string]model.LayoutEntry, len(res.Entries))
	for _, e := range res.Entries {
		out[e.EventID] = e
	}
	return out
}

func TestNew_DefaultsToCurrentWeek(t *testing.T) {
	c := newTestController(t)
	assert.Equal(t, model.ModeWeek, c.Mode())
	assert.Equal(t, model.Day{Year: 2026, Month: time.August, Date: 26}, c.Anchor())
}

func TestLayout_EmptyEventListIsNotAnError(t *testing.T) {
	c := newTestController(t)
	res := c.Layout()
	assert.Len(t, res.Buckets, 7)
	assert.Empty(t, res.Entries)
	for _, b := range res.Buckets {
		assert.Empty(t, b.Events)
	}
}

func TestLayout_PipelineEndToEnd(t *testing.T) {
	c := newTestController(t)
	c.SetEvents([]model.RawEvent{
		rawTimed("A", "2026-08-26T09:00:00Z"),
		{"id": "B", "title": "B",
			"start": map[string]any{"dateTime": "2026-08-26T09:30:00Z"},
			"end":   map[string]any{"dateTime": "2026-08-26T10:30:00Z"}},
		rawTimed("C", "2026-08-26T11:00:00Z"),
	})

	got := entriesByID(c.Layout())
	require.Len(t, got, 3)

	// A and B split the cell; C stands alone after them.
	assert.InDelta(t, 0.5, got["A"].WidthFraction, 1e-9)
	assert.InDelta(t, 0.0, got["A"].LeftFraction, 1e-9)
	assert.InDelta(t, 0.5, got["B"].WidthFraction, 1e-9)
	assert.InDelta(t, 0.5, got["B"].LeftFraction, 1e-9)
	assert.InDelta(t, 1.0, got["C"].WidthFraction, 1e-9)

	// 09:00 with hour height 60.
	assert.InDelta(t, 540, got["A"].TopOffset, 1e-9)

	// All three happened on the 26th; A and B ended before noon.
	assert.True(t, got["A"].IsPast)
	assert.True(t, got["B"].IsPast)
	assert.False(t, got["C"].IsPast)
}

func TestLayout_AllDayNeverSplitsLanes(t *testing.T) {
	c := newTestController(t)
	c.SetEvents([]model.RawEvent{
		{"id": "holiday", "title": "Holiday", "allDay": true, "date": "2026-08-26"},
		rawTimed("meeting", "2026-08-26T09:00:00Z"),
		rawTimed("standup", "2026-08-26T09:30:00Z"),
	})

	got := entriesByID(c.Layout())
	require.Len(t, got, 3)

	assert.True(t, got["holiday"].AllDay)
	assert.InDelta(t, 1.0, got["holiday"].WidthFraction, 1e-9)
	assert.InDelta(t, 0.0, got["holiday"].LeftFraction, 1e-9)

	// The timed pair splits in two; the all-day event did not join the cluster.
	assert.InDelta(t, 0.5, got["meeting"].WidthFraction, 1e-9)
	assert.InDelta(t, 0.5, got["standup"].WidthFraction, 1e-9)
}

// Records without IDs are valid input (a usable date is the only
// requirement), and IDs are not guaranteed unique. Every event must keep its
// own geometry regardless.
func TestLayout_EventsWithoutIDsKeepTheirGeometry(t *testing.T) {
	c := newTestController(t)
	c.SetEvents([]model.RawEvent{
		{"title": "Drop-off", "start": map[string]any{"dateTime": "2026-08-26T09:00:00Z"}},
		{"title": "Pick-up", "start": map[string]any{"dateTime": "2026-08-26T09:30:00Z"}},
	})

	res := c.Layout()
	require.Len(t, res.Entries, 2)

	tops := []float64{res.Entries[0].TopOffset, res.Entries[1].TopOffset}
	sort.Float64s(tops)
	assert.InDelta(t, 540, tops[0], 1e-9) // 09:00
	assert.InDelta(t, 570, tops[1], 1e-9) // 09:30

	// The pair overlaps, so each takes half the cell in its own lane.
	assert.InDelta(t, 0.5, res.Entries[0].WidthFraction, 1e-9)
	assert.InDelta(t, 0.5, res.Entries[1].WidthFraction, 1e-9)
	assert.NotEqual(t, res.Entries[0].LeftFraction, res.Entries[1].LeftFraction)
}

func TestLayout_Idempotent(t *testing.T) {
	c := newTestController(t)
	c.SetEvents([]model.RawEvent{
		rawTimed("A", "2026-08-26T09:00:00Z"),
		rawTimed("B", "2026-08-26T09:30:00Z"),
	})

	first := c.Layout()  // cache miss
	second := c.Layout() // cache hit
	assert.Equal(t, first, second)
}

func TestLayout_CacheKeyedByEventContent(t *testing.T) {
	c := newTestController(t)
	c.SetEvents([]model.RawEvent{rawTimed("A", "2026-08-26T09:00:00Z")})
	before := c.Layout()
	require.Len(t, before.Entries, 1)

	// A content-identical list must hit the same cached result.
	c.SetEvents([]model.RawEvent{rawTimed("A", "2026-08-26T09:00:00Z")})
	assert.Equal(t, before, c.Layout())

	// Changing the list must miss and recompute.
	c.SetEvents([]model.RawEvent{
		rawTimed("A", "2026-08-26T09:00:00Z"),
		rawTimed("B", "2026-08-26T09:30:00Z"),
	})
	after := c.Layout()
	assert.Len(t, after.Entries, 2)
}

func TestLayout_CacheEvictionStillCorrect(t *testing.T) {
	c := newTestController(t)
	c.SetEvents([]model.RawEvent{rawTimed("A", "2026-08-26T09:00:00Z")})

	want := c.Layout()

	// Push well past the cache bound with other views.
	for i := 0; i < 2*cacheSize; i++ {
		day := model.Day{Year: 2026, Month: time.January, Date: 1}.AddDays(i)
		_, err := c.LayoutFor(bucket.View{Mode: model.ModeDay, Anchor: day})
		require.NoError(t, err)
	}

	// Recomputing the original view after eviction matches the cached-era result.
	assert.Equal(t, want, c.Layout())
}

func TestLayoutFor_RejectsInvalidViews(t *testing.T) {
	c := newTestController(t)

	_, err := c.LayoutFor(bucket.View{Mode: "fortnight", Anchor: c.Anchor()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid view mode")

	_, err = c.LayoutFor(bucket.View{Mode: model.ModeDay})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anchor date")
}

func TestSetMode_Validates(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.SetMode(model.ModeMonth))
	assert.Equal(t, model.ModeMonth, c.Mode())

	err := c.SetMode(model.Mode("year"))
	require.Error(t, err)
	// Anchor unchanged by a mode switch.
	assert.Equal(t, model.Day{Year: 2026, Month: time.August, Date: 26}, c.Anchor())
}

func TestNavigate_Actions(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.SetMode(model.ModeDay))

	next, err := c.Navigate("next")
	require.NoError(t, err)
	assert.Equal(t, model.Day{Year: 2026, Month: time.August, Date: 27}, next)

	prev, err := c.Navigate("prev")
	require.NoError(t, err)
	assert.Equal(t, model.Day{Year: 2026, Month: time.August, Date: 26}, prev)

	require.NoError(t, c.SetAnchor(model.Day{Year: 2020, Month: time.May, Date: 1}))
	today, err := c.Navigate("today")
	require.NoError(t, err)
	assert.Equal(t, model.Day{Year: 2026, Month: time.August, Date: 26}, today)

	_, err = c.Navigate("sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid navigation action")
}

func TestNavigate_RoundTripPerMode(t *testing.T) {
	for _, mode := range []model.Mode{model.ModeDay, model.ModeFourDay, model.ModeWeek, model.ModeMonth} {
		t.Run(string(mode), func(t *testing.T) {
			c := newTestController(t)
			require.NoError(t, c.SetMode(mode))
			start := c.Anchor()

			_, err := c.Navigate("next")
			require.NoError(t, err)
			back, err := c.Navigate("prev")
			require.NoError(t, err)
			assert.Equal(t, start, back)
		})
	}
}

// Month steps clamp at short months, but the nominal day-of-month survives:
// Jan 31 -> Feb 28 -> Mar 31, and next/prev round-trips from a month end.
func TestNavigate_MonthKeepsNominalDayAcrossShortMonths(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.SetMode(model.ModeMonth))
	require.NoError(t, c.SetAnchor(model.Day{Year: 2026, Month: time.January, Date: 31}))

	next, err := c.Navigate("next")
	require.NoError(t, err)
	assert.Equal(t, model.Day{Year: 2026, Month: time.February, Date: 28}, next)

	back, err := c.Navigate("prev")
	require.NoError(t, err)
	assert.Equal(t, model.Day{Year: 2026, Month: time.January, Date: 31}, back)

	// Skipping across February restores the 31st in March.
	_, err = c.Navigate("next")
	require.NoError(t, err)
	march, err := c.Navigate("next")
	require.NoError(t, err)
	assert.Equal(t, model.Day{Year: 2026, Month: time.March, Date: 31}, march)
}

// Day-level navigation lands on exact dates, so it rebases the nominal day a
// later month step works from.
func TestNavigate_DayStepRebasesNominalDay(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.SetMode(model.ModeDay))
	require.NoError(t, c.SetAnchor(model.Day{Year: 2026, Month: time.January, Date: 31}))

	next, err := c.Navigate("next")
	require.NoError(t, err)
	assert.Equal(t, model.Day{Year: 2026, Month: time.February, Date: 1}, next)

	require.NoError(t, c.SetMode(model.ModeMonth))
	march, err := c.Navigate("next")
	require.NoError(t, err)
	assert.Equal(t, model.Day{Year: 2026, Month: time.March, Date: 1}, march)
}

func TestEventsForDate_LocalDateOnly(t *testing.T) {
	c := newTestController(t)
	c.SetEvents([]model.RawEvent{
		rawTimed("on26", "2026-08-26T09:00:00Z"),
		rawTimed("on27", "2026-08-27T09:00:00Z"),
		{"id": "broken", "title": "no date"},
	})

	got := c.EventsForDate(model.Day{Year: 2026, Month: time.August, Date: 26})
	require.Len(t, got, 1)
	assert.Equal(t, "on26", got[0].ID)

	assert.Empty(t, c.EventsForDate(model.Day{Year: 2026, Month: time.August, Date: 28}))
}

func TestMonthCells_OverflowCap(t *testing.T) {
	c := newTestController(t)

	raws := make([]model.RawEvent, 0, 5)
	for i := 0; i < 5; i++ {
		raws = append(raws, rawTimed("busy"+strconv.Itoa(i), fmt.Sprintf("2026-08-26T%02d:00:00Z", 9+i)))
	}
	c.SetEvents(raws)

	var cell MonthCell
	found := false
	for _, mc := range c.MonthCells() {
		if mc.Day == (model.Day{Year: 2026, Month: time.August, Date: 26}) {
			cell, found = mc, true
			break
		}
	}
	require.True(t, found)
	assert.Len(t, cell.Visible, 3)
	assert.Equal(t, 2, cell.Hidden)
}

func TestMonthCells_GridShape(t *testing.T) {
	c := newTestController(t)
	cells := c.MonthCells()
	// August 2026 pads to the full 6-row grid.
	require.Len(t, cells, 42)
	assert.False(t, cells[0].InMonth)
	assert.True(t, cells[6].InMonth)
}

func TestMonthLayout_StopsAtBucketing(t *testing.T) {
	c := newTestController(t)
	c.SetEvents([]model.RawEvent{rawTimed("A", "2026-08-26T09:00:00Z")})
	require.NoError(t, c.SetMode(model.ModeMonth))

	res := c.Layout()
	assert.Empty(t, res.Entries)
	assert.Len(t, res.Buckets, 42)
}

func TestSetEvents_DropsUnusableRecordsOnly(t *testing.T) {
	c := newTestController(t)
	c.SetEvents([]model.RawEvent{
		rawTimed("good", "2026-08-26T09:00:00Z"),
		{"id": "bad"},
	})

	got := entriesByID(c.Layout())
	require.Len(t, got, 1)
	assert.Contains(t, got, "good")
}
