// Package lanes resolves temporal overlap between timed events in one
// calendar cell into side-by-side lane assignments.
//
// The algorithm is greedy interval partitioning: events are processed in
// start order and each takes the lowest-indexed lane whose occupant has
// already ended, opening a new lane only when none is free. Within a cluster
// of transitively-overlapping events, the number of lanes opened equals the
// peak number of simultaneously running events, which is the minimum any
// assignment could use.
package lanes

import (
	"sort"
	"time"

	"famcal/internal/model"
)

// Assignment places one event into a lane of its overlap cluster. The event
// rides along in full; upstream data does not guarantee unique (or any) IDs,
// so there is no key a caller could safely re-join on.
type Assignment struct {
	Event model.Event

	// Lane is the zero-based column index.
	Lane int

	// Lanes is the lane count of the event's whole cluster; every member
	// of a cluster shares it, and events in different clusters of the same
	// cell do not.
	Lanes int
}

// Overlaps reports whether two events share any instant, with half-open
// semantics: an event ending exactly when another starts does not overlap it.
func Overlaps(a, b model.Event) bool {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return start.Before(end)
}

// Resolve assigns lanes to the timed events of one cell. All-day events are
// skipped entirely; they render full-width and never split lanes with timed
// events. The result is deterministic: ties on start time are broken by
// title, then by id.
func Resolve(events []model.Event) []Assignment {
	timed := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if !ev.AllDay {
			timed = append(timed, ev)
		}
	}
	if len(timed) == 0 {
		return []Assignment{}
	}

	sort.Slice(timed, func(i, j int) bool {
		a, b := timed[i], timed[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})

	out := make([]Assignment, 0, len(timed))

	// laneEnds holds, per lane of the current cluster, the end of the event
	// occupying it. clusterFrom marks where the cluster begins in out.
	var laneEnds []time.Time
	clusterFrom := 0

	closeCluster := func(upTo int) {
		for i := clusterFrom; i < upTo; i++ {
			out[i].Lanes = len(laneEnds)
		}
		laneEnds = laneEnds[:0]
		clusterFrom = upTo
	}

	for _, ev := range timed {
		// A new cluster starts once every active lane has drained: no
		// remaining occupant runs past this event's start.
		if len(laneEnds) > 0 && !maxEnd(laneEnds).After(ev.Start) {
			closeCluster(len(out))
		}

		lane := -1
		for i, end := range laneEnds {
			if !end.After(ev.Start) {
				lane = i
				break
			}
		}
		if lane == -1 {
			lane = len(laneEnds)
			laneEnds = append(laneEnds, ev.End)
		} else {
			laneEnds[lane] = ev.End
		}

		out = append(out, Assignment{Event: ev, Lane: lane})
	}
	closeCluster(len(out))

	return out
}

func maxEnd(ends []time.Time) time.Time {
	max := ends[0]
	for _, e := range ends[1:] {
		if e.After(max) {
			max = e
		}
	}
	return max
}
