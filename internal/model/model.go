package model

import (
	"fmt"
	"time"
)

// RawEvent is an event record as the surrounding application hands it to us:
// a decoded JSON object whose date may live under any of several keys.
// We never interpret anything beyond the date-bearing fields, id and title;
// the rest is opaque to the layout engine.
type RawEvent map[string]any

// Mode is a calendar view granularity.
type Mode string

const (
	ModeDay     Mode = "day"
	ModeFourDay Mode = "4day"
	ModeWeek    Mode = "week"
	ModeMonth   Mode = "month"
)

// ParseMode validates a view mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDay, ModeFourDay, ModeWeek, ModeMonth:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid view mode %q (want day, 4day, week or month)", s)
}

// Event is the canonical, normalized form every pipeline stage operates on.
// Invariant: Start <= End. For all-day events both are aligned to local day
// boundaries. Immutable once produced by the normalizer.
type Event struct {
	ID    string
	Title string

	Category string // passed through opaquely, e.g. for coloring in the UI

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// Day identifies one local calendar date by its components. Comparing Day
// values is the single, canonical "same local date" test used by bucketing,
// the day query and the web API; never compare formatted strings or UTC
// instants for this purpose.
type Day struct {
	Year  int
	Month time.Month
	Date  int
}

// DayOf extracts the local calendar date of an instant.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Date: d}
}

// SameDay reports whether two instants fall on the same local calendar date.
func SameDay(a, b time.Time) bool {
	return DayOf(a) == DayOf(b)
}

// Time returns the midnight instant of the day in the given location.
func (d Day) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Date, 0, 0, 0, 0, loc)
}

// AddDays returns the day n calendar days later (n may be negative).
// Arithmetic runs at noon UTC so DST transitions cannot skip a date.
func (d Day) AddDays(n int) Day {
	t := time.Date(d.Year, d.Month, d.Date+n, 12, 0, 0, 0, time.UTC)
	return DayOf(t)
}

// AddMonths returns the day n calendar months later. The day-of-month is
// clamped to the target month's length, so Jan 31 + 1 month is Feb 28/29,
// never a spill into March.
func (d Day) AddMonths(n int) Day {
	first := time.Date(d.Year, d.Month+time.Month(n), 1, 12, 0, 0, 0, time.UTC)
	last := time.Date(first.Year(), first.Month()+1, 0, 12, 0, 0, 0, time.UTC).Day()
	day := d.Date
	if day > last {
		day = last
	}
	return Day{Year: first.Year(), Month: first.Month(), Date: day}
}

// WithDate returns the day with its date replaced by n, clamped to the
// month's length (and to 1 from below).
func (d Day) WithDate(n int) Day {
	last := time.Date(d.Year, d.Month+1, 0, 12, 0, 0, 0, time.UTC).Day()
	if n > last {
		n = last
	}
	if n < 1 {
		n = 1
	}
	d.Date = n
	return d
}

// Weekday returns the weekday of the date.
func (d Day) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Date, 12, 0, 0, 0, time.UTC).Weekday()
}

// IsZero reports whether the day is the zero value.
func (d Day) IsZero() bool {
	return d == Day{}
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Date)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DayOf(t), nil
}

// MarshalJSON renders the day as a "YYYY-MM-DD" string.
func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON parses a "YYYY-MM-DD" string.
func (d *Day) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date JSON %s", s)
	}
	day, err := ParseDay(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = day
	return nil
}

// LayoutEntry is the abstract position of one event within one calendar cell,
// independent of any rendering technology. Offsets and heights are in the
// unit system of the projector options (one hour = HourHeight units).
type LayoutEntry struct {
	EventID    string `json:"event_id"`
	BucketDate Day    `json:"bucket_date"`

	TopOffset float64 `json:"top_offset"`
	Height    float64 `json:"height"`

	// LeftFraction / WidthFraction describe horizontal lane placement as
	// fractions of the cell width. All-day entries always span the full cell.
	LeftFraction  float64 `json:"left_fraction"`
	WidthFraction float64 `json:"width_fraction"`

	AllDay bool `json:"all_day"`
	IsPast bool `json:"is_past"`
}
