// Package layout projects a timed event plus its lane assignment into an
// abstract cell position. Nothing here knows about pixels or rendering; the
// unit system is whatever Options says an hour is worth.
package layout

import (
	"time"

	"famcal/internal/lanes"
	"famcal/internal/model"
)

// Options sizes the time grid.
type Options struct {
	// HourHeight is the height of one hour. Zero selects 60.
	HourHeight float64

	// MinEventHeight is the floor for projected heights so very short
	// events stay legible. Zero selects a third of HourHeight.
	MinEventHeight float64
}

func (o Options) hourHeight() float64 {
	if o.HourHeight <= 0 {
		return 60
	}
	return o.HourHeight
}

func (o Options) minEventHeight() float64 {
	if o.MinEventHeight <= 0 {
		return o.hourHeight() / 3
	}
	return o.MinEventHeight
}

// Project places one timed event. It is a pure function: the reference
// instant for past classification is an argument, never read from the clock.
func Project(ev model.Event, asn lanes.Assignment, day model.Day, now time.Time, opts Options) model.LayoutEntry {
	hh := opts.hourHeight()

	minutes := float64(ev.Start.Hour()*60 + ev.Start.Minute())
	duration := ev.End.Sub(ev.Start).Minutes()

	height := duration / 60 * hh
	if min := opts.minEventHeight(); height < min {
		height = min
	}

	total := asn.Lanes
	if total < 1 {
		total = 1
	}

	return model.LayoutEntry{
		EventID:       ev.ID,
		BucketDate:    day,
		TopOffset:     minutes / 60 * hh,
		Height:        height,
		LeftFraction:  float64(asn.Lane) / float64(total),
		WidthFraction: 1 / float64(total),
		IsPast:        isPast(ev, now),
	}
}

// ProjectAllDay places an all-day event: pinned to the top of the cell, full
// width, one hour tall in grid units.
func ProjectAllDay(ev model.Event, day model.Day, now time.Time, opts Options) model.LayoutEntry {
	return model.LayoutEntry{
		EventID:       ev.ID,
		BucketDate:    day,
		TopOffset:     0,
		Height:        opts.hourHeight(),
		LeftFraction:  0,
		WidthFraction: 1,
		AllDay:        true,
		IsPast:        isPast(ev, now),
	}
}

// isPast is the one past/future rule for the whole engine: an event is past
// when it has fully ended. An in-progress event is not past.
func isPast(ev model.Event, now time.Time) bool {
	return ev.End.Before(now)
}
