// Package view orchestrates the layout pipeline: it owns the current view
// mode and anchor date, runs normalize → bucket → lanes → layout on every
// transition or event push, and memoizes results behind a bounded cache.
package view

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"famcal/internal/bucket"
	"famcal/internal/lanes"
	"famcal/internal/layout"
	appLog "famcal/internal/log"
	"famcal/internal/model"
	"famcal/internal/normalize"
)

// cacheSize bounds the memo cache; navigation bounces between a handful of
// adjacent (mode, anchor) pairs, so a small bound captures the useful hits.
const cacheSize = 8

// Options configures a Controller.
type Options struct {
	// Location is the display timezone. Nil means time.Local.
	Location *time.Location

	// WeekStart controls the first day of week/month grids.
	WeekStart time.Weekday

	// DefaultDuration for events without a usable end; zero means one hour.
	DefaultDuration time.Duration

	// Layout sizes the time grid projection.
	Layout layout.Options

	// MonthCellMax caps visible events per month cell before the remainder
	// collapses into a hidden count. Zero or negative disables the cap.
	MonthCellMax int

	// Diag throttles drop diagnostics. Nil gets a default limiter.
	Diag *appLog.Limiter

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

// Result is one fully computed layout pass.
type Result struct {
	View    bucket.View
	Buckets []bucket.Bucket
	Entries []model.LayoutEntry
}

// MonthCell is one month-grid cell with the overflow policy applied.
type MonthCell struct {
	Day     model.Day
	InMonth bool
	Visible []model.Event
	Hidden  int
}

// Controller is the engine's public surface. It is safe for concurrent use;
// each computation is independent and the cache follows last write wins.
type Controller struct {
	opts Options

	mu     sync.Mutex
	mode   model.Mode
	anchor model.Day

	// nominalDay is the day-of-month last set explicitly. Month steps clamp
	// at short months (Jan 31 lands on Feb 28); re-applying the nominal day
	// keeps Feb 28 -> Mar 31 and makes next/prev a round trip.
	nominalDay int

	events     []model.Event
	eventsHash uint64

	cache      map[cacheKey]*Result
	cacheOrder []cacheKey
}

type cacheKey struct {
	mode   model.Mode
	anchor model.Day
	hash   uint64
}

// New builds a Controller showing the current week.
func New(opts Options) *Controller {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Diag == nil {
		opts.Diag = appLog.NewLimiter(0, 0)
	}
	anchor := model.DayOf(opts.Now().In(opts.Location))
	return &Controller{
		opts:       opts,
		mode:       model.ModeWeek,
		anchor:     anchor,
		nominalDay: anchor.Date,
		cache:      make(map[cacheKey]*Result),
	}
}

// SetEvents replaces the upstream event list. Records are normalized once
// here; unusable ones are dropped with a rate-limited diagnostic. The raw
// list is not retained, so there is no second copy to drift out of sync.
func (c *Controller) SetEvents(raws []model.RawEvent) {
	normalized := normalize.All(raws, normalize.Options{
		Location:        c.opts.Location,
		DefaultDuration: c.opts.DefaultDuration,
	}, c.opts.Diag)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = normalized
	c.eventsHash = hashEvents(normalized)
	appLog.Debug("event list replaced", "raw", len(raws), "normalized", len(normalized))
}

// Mode returns the active view mode.
func (c *Controller) Mode() model.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Anchor returns the active anchor date.
func (c *Controller) Anchor() model.Day {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anchor
}

// SetMode switches the view granularity, keeping the anchor date.
func (c *Controller) SetMode(m model.Mode) error {
	if _, err := model.ParseMode(string(m)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
	return nil
}

// SetAnchor moves the view to an explicit date.
func (c *Controller) SetAnchor(d model.Day) error {
	if d.IsZero() {
		return fmt.Errorf("anchor date is unset")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anchor = d
	c.nominalDay = d.Date
	return nil
}

// Navigate applies a navigation action (today, prev, next) and returns the
// new anchor date. Unknown actions are programmer errors and fail fast.
func (c *Controller) Navigate(action string) (model.Day, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := bucket.View{Mode: c.mode, Anchor: c.anchor}
	switch action {
	case "today":
		v = bucket.Today(v, c.opts.Now().In(c.opts.Location))
	case "prev":
		v = bucket.Prev(v)
	case "next":
		v = bucket.Next(v)
	default:
		return model.Day{}, fmt.Errorf("invalid navigation action %q (want today, prev or next)", action)
	}

	if c.mode == model.ModeMonth && action != "today" {
		v.Anchor = v.Anchor.WithDate(c.nominalDay)
	} else {
		c.nominalDay = v.Anchor.Date
	}
	c.anchor = v.Anchor
	return c.anchor, nil
}

// Layout computes (or recalls) the layout for the active view.
func (c *Controller) Layout() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.layoutLocked(bucket.View{Mode: c.mode, Anchor: c.anchor})
}

// LayoutFor computes the layout for an arbitrary view against the current
// event list. Invalid views fail fast.
func (c *Controller) LayoutFor(v bucket.View) (Result, error) {
	if _, err := model.ParseMode(string(v.Mode)); err != nil {
		return Result{}, err
	}
	if v.Anchor.IsZero() {
		return Result{}, fmt.Errorf("anchor date is unset")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.layoutLocked(v), nil
}

// EventsForDate returns the normalized events whose local calendar date
// equals d. Month padding cells never leak adjacent-month events into this.
func (c *Controller) EventsForDate(d model.Day) []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bucket.EventsOn(d, c.events)
}

// MonthCells returns the month grid for the anchor's month with the
// configured per-cell visibility cap applied.
func (c *Controller) MonthCells() []MonthCell {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := bucket.View{Mode: model.ModeMonth, Anchor: c.anchor}
	buckets := bucket.Assign(v, c.opts.WeekStart, c.events)

	cells := make([]MonthCell, 0, len(buckets))
	for _, b := range buckets {
		cell := MonthCell{Day: b.Day, InMonth: b.InMonth, Visible: b.Events}
		if limit := c.opts.MonthCellMax; limit > 0 && len(b.Events) > limit {
			cell.Visible = b.Events[:limit]
			cell.Hidden = len(b.Events) - limit
		}
		cells = append(cells, cell)
	}
	return cells
}

// layoutLocked runs the pipeline for v, consulting the memo cache first.
// Caller holds c.mu.
func (c *Controller) layoutLocked(v bucket.View) *Result {
	key := cacheKey{mode: v.Mode, anchor: v.Anchor, hash: c.eventsHash}
	if res, ok := c.cache[key]; ok {
		return res
	}

	res := c.compute(v)

	c.cache[key] = res
	c.cacheOrder = append(c.cacheOrder, key)
	if len(c.cacheOrder) > cacheSize {
		oldest := c.cacheOrder[0]
		c.cacheOrder = c.cacheOrder[1:]
		delete(c.cache, oldest)
	}
	return res
}

// compute is the full pipeline: bucket, resolve lanes per cell, project.
// Month mode stops at bucketing; its cells only need membership plus the
// overflow cap, which MonthCells applies.
func (c *Controller) compute(v bucket.View) *Result {
	now := c.opts.Now().In(c.opts.Location)
	buckets := bucket.Assign(v, c.opts.WeekStart, c.events)

	res := &Result{View: v, Buckets: buckets, Entries: []model.LayoutEntry{}}
	if v.Mode == model.ModeMonth {
		return res
	}

	for _, b := range buckets {
		for _, ev := range b.Events {
			if ev.AllDay {
				res.Entries = append(res.Entries, layout.ProjectAllDay(ev, b.Day, now, c.opts.Layout))
			}
		}
		// Each assignment carries its event; IDs may repeat or be empty in
		// upstream data, so nothing is ever re-joined by ID.
		for _, asn := range lanes.Resolve(b.Events) {
			res.Entries = append(res.Entries, layout.Project(asn.Event, asn, b.Day, now, c.opts.Layout))
		}
	}
	return res
}

// hashEvents fingerprints a normalized list for the cache key. Content
// hashing stands in for referential identity: equal content is exactly the
// case where a cached result must match a fresh computation.
func hashEvents(events []model.Event) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	writeInt := func(n int64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(n >> (8 * i))
		}
		h.Write(buf[:])
	}
	for _, ev := range events {
		h.Write([]byte(ev.ID))
		h.Write([]byte{0})
		h.Write([]byte(ev.Title))
		h.Write([]byte{0})
		writeInt(ev.Start.UnixNano())
		writeInt(ev.End.UnixNano())
		if ev.AllDay {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	return h.Sum64()
}
