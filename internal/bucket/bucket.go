// Package bucket assigns normalized events to calendar cells for a given
// view mode and anchor date, and owns the navigation arithmetic between
// anchors.
package bucket

import (
	"time"

	"famcal/internal/model"
)

// View selects a cell set: a granularity plus the anchor date it starts on
// (or, for week and month, the date it contains).
type View struct {
	Mode   model.Mode
	Anchor model.Day
}

// Bucket is one calendar cell plus the events whose local calendar date
// falls on it. Buckets are rebuilt wholesale on every call, never mutated.
type Bucket struct {
	Day model.Day

	// InMonth is false for the padding cells of adjacent months in the
	// month grid; it is always true for the other view modes.
	InMonth bool

	Events []model.Event
}

// Cells computes the cell set for a view. weekStart controls which weekday
// opens the week view and the month grid rows.
func Cells(v View, weekStart time.Weekday) []Bucket {
	switch v.Mode {
	case model.ModeDay:
		return []Bucket{{Day: v.Anchor, InMonth: true}}

	case model.ModeFourDay:
		cells := make([]Bucket, 0, 4)
		for i := 0; i < 4; i++ {
			cells = append(cells, Bucket{Day: v.Anchor.AddDays(i), InMonth: true})
		}
		return cells

	case model.ModeWeek:
		first := startOfWeek(v.Anchor, weekStart)
		cells := make([]Bucket, 0, 7)
		for i := 0; i < 7; i++ {
			cells = append(cells, Bucket{Day: first.AddDays(i), InMonth: true})
		}
		return cells

	case model.ModeMonth:
		return monthCells(v.Anchor, weekStart)
	}
	return nil
}

// Assign computes the cell set and fills each cell with the events whose
// local calendar date equals the cell's date. Membership is decided from
// local date components, never from formatted strings or UTC conversion, so
// events near midnight land on the right side of the boundary.
func Assign(v View, weekStart time.Weekday, events []model.Event) []Bucket {
	cells := Cells(v, weekStart)

	index := make(map[model.Day]int, len(cells))
	for i, c := range cells {
		index[c.Day] = i
	}

	for _, ev := range events {
		if i, ok := index[model.DayOf(ev.Start)]; ok {
			cells[i].Events = append(cells[i].Events, ev)
		}
	}
	return cells
}

// EventsOn returns the events whose local calendar date equals d, in input
// order. This is the membership rule the month grid and the day query share;
// an event whose date falls in an adjacent month stays out of that month's
// query even when it shows up in a padding cell.
func EventsOn(d model.Day, events []model.Event) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range events {
		if model.DayOf(ev.Start) == d {
			out = append(out, ev)
		}
	}
	return out
}

// startOfWeek returns the weekStart day on or before d.
func startOfWeek(d model.Day, weekStart time.Weekday) model.Day {
	diff := int(d.Weekday()) - int(weekStart)
	if diff < 0 {
		diff += 7
	}
	return d.AddDays(-diff)
}

// monthCells builds the month grid for the anchor's month: every day of the
// month, padded with trailing days of the previous month to open the first
// row and leading days of the next month to close the last row.
func monthCells(anchor model.Day, weekStart time.Weekday) []Bucket {
	first := model.Day{Year: anchor.Year, Month: anchor.Month, Date: 1}

	cells := make([]Bucket, 0, 42)

	// Previous-month padding.
	lead := int(first.Weekday()) - int(weekStart)
	if lead < 0 {
		lead += 7
	}
	for i := lead; i > 0; i-- {
		cells = append(cells, Bucket{Day: first.AddDays(-i)})
	}

	// Every day of the anchor month.
	for d := first; d.Month == anchor.Month; d = d.AddDays(1) {
		cells = append(cells, Bucket{Day: d, InMonth: true})
	}

	// Next-month padding to complete the final row.
	if rem := len(cells) % 7; rem != 0 {
		last := cells[len(cells)-1].Day
		for i := 1; i <= 7-rem; i++ {
			cells = append(cells, Bucket{Day: last.AddDays(i)})
		}
	}

	return cells
}

// Next advances the anchor by one view step: a day, four days, a week or a
// calendar month.
func Next(v View) View {
	return shifted(v, 1)
}

// Prev moves the anchor back by one view step.
func Prev(v View) View {
	return shifted(v, -1)
}

// Today resets the anchor to now's local calendar date, keeping the mode.
func Today(v View, now time.Time) View {
	v.Anchor = model.DayOf(now)
	return v
}

func shifted(v View, sign int) View {
	switch v.Mode {
	case model.ModeDay:
		v.Anchor = v.Anchor.AddDays(sign)
	case model.ModeFourDay:
		v.Anchor = v.Anchor.AddDays(4 * sign)
	case model.ModeWeek:
		v.Anchor = v.Anchor.AddDays(7 * sign)
	case model.ModeMonth:
		v.Anchor = v.Anchor.AddMonths(sign)
	}
	return v
}
