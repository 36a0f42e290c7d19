// Package normalize converts heterogeneous event records into the canonical
// Event shape the layout pipeline operates on.
//
// The surrounding application has accumulated several shapes for the same
// logical field over its lifetime (a direct date value, a nested
// start.dateTime, a bare dateTime string, a plain date, and a backup field
// written for crash recovery). Rather than duck-typing across all of them at
// every call site, this package tries an ordered list of typed extractors and
// takes the first valid instant.
package normalize

import (
	"strconv"
	"time"

	appLog "famcal/internal/log"
	"famcal/internal/model"
)

// Options controls normalization.
type Options struct {
	// Location is the display timezone every instant is converted into.
	// Nil means time.Local.
	Location *time.Location

	// DefaultDuration is assumed for events with a start but no usable
	// end. Zero means one hour.
	DefaultDuration time.Duration
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

func (o Options) defaultDuration() time.Duration {
	if o.DefaultDuration <= 0 {
		return time.Hour
	}
	return o.DefaultDuration
}

// extractor pulls a candidate start instant out of a raw record. Extractors
// are tried in priority order; the first hit wins.
type extractor struct {
	name string
	fn   func(raw model.RawEvent, loc *time.Location) (time.Time, bool)
}

var startExtractors = []extractor{
	{"date_object", extractDateObject},
	{"nested_start", extractNestedStart},
	{"datetime_string", extractDateTimeString},
	{"datetime_value", extractDateTimeValue},
	{"plain_date", extractPlainDate},
	{"saved_date", extractSavedDate},
}

// Normalize converts one raw record. The second return value is false when
// no extractor yields a valid instant; such events are excluded from layout,
// never surfaced as errors.
func Normalize(raw model.RawEvent, opts Options) (model.Event, bool) {
	loc := opts.location()

	var start time.Time
	found := false
	for _, ex := range startExtractors {
		if t, ok := ex.fn(raw, loc); ok {
			start = t.In(loc)
			found = true
			break
		}
	}
	if !found {
		return model.Event{}, false
	}

	ev := model.Event{
		ID:       stringField(raw, "id", "universalId", "firestoreId"),
		Title:    stringField(raw, "title", "summary"),
		Category: stringField(raw, "category", "eventType"),
		AllDay:   boolField(raw, "allDay"),
		Start:    start,
	}

	end, ok := extractEnd(raw, loc)
	if ok && end.After(start) {
		ev.End = end.In(loc)
	} else {
		ev.End = start.Add(opts.defaultDuration())
	}

	if ev.AllDay {
		ev.Start, ev.End = dayBounds(ev.Start, ev.End, loc)
	}

	return ev, true
}

// All converts a full record list, dropping invalid entries. Drops are
// reported through the limiter so a bad record in a hot recompute loop does
// not flood the log.
func All(raws []model.RawEvent, opts Options, diag *appLog.Limiter) []model.Event {
	out := make([]model.Event, 0, len(raws))
	for i, raw := range raws {
		ev, ok := Normalize(raw, opts)
		if !ok {
			if diag != nil {
				key := stringField(raw, "id", "universalId", "firestoreId")
				if key == "" {
					key = "index-" + strconv.Itoa(i)
				}
				diag.Debugf("unparseable-"+key, "event has no usable date, dropped from layout",
					"id", key, "title", stringField(raw, "title", "summary"))
			}
			continue
		}
		out = append(out, ev)
	}
	return out
}

func extractDateObject(raw model.RawEvent, loc *time.Location) (time.Time, bool) {
	return coerceInstant(raw["dateObj"], loc)
}

func extractNestedStart(raw model.RawEvent, loc *time.Location) (time.Time, bool) {
	nested, ok := raw["start"].(map[string]any)
	if !ok {
		return time.Time{}, false
	}
	return coerceInstant(nested["dateTime"], loc)
}

func extractDateTimeString(raw model.RawEvent, loc *time.Location) (time.Time, bool) {
	s, ok := raw["dateTime"].(string)
	if !ok {
		return time.Time{}, false
	}
	return parseInstant(s, loc)
}

func extractDateTimeValue(raw model.RawEvent, loc *time.Location) (time.Time, bool) {
	if t, ok := raw["dateTime"].(time.Time); ok && !t.IsZero() {
		return t, true
	}
	return time.Time{}, false
}

func extractPlainDate(raw model.RawEvent, loc *time.Location) (time.Time, bool) {
	return coerceInstant(raw["date"], loc)
}

func extractSavedDate(raw model.RawEvent, loc *time.Location) (time.Time, bool) {
	// Backup field written by the app for improved persistence; last resort.
	extra, ok := raw["extraDetails"].(map[string]any)
	if !ok {
		return time.Time{}, false
	}
	return coerceInstant(extra["savedDate"], loc)
}

func extractEnd(raw model.RawEvent, loc *time.Location) (time.Time, bool) {
	if nested, ok := raw["end"].(map[string]any); ok {
		if t, ok := coerceInstant(nested["dateTime"], loc); ok {
			return t, true
		}
	}
	if t, ok := coerceInstant(raw["endDateTime"], loc); ok {
		return t, true
	}
	if t, ok := coerceInstant(raw["endDate"], loc); ok {
		return t, true
	}
	return time.Time{}, false
}

// coerceInstant accepts the value shapes that occur in practice: an
// in-process time.Time, an ISO-ish string, or a numeric epoch-milliseconds
// value from a JSON round trip.
func coerceInstant(v any, loc *time.Location) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t, true
	case string:
		return parseInstant(t, loc)
	case float64:
		if t <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(t)).In(loc), true
	case int64:
		if t <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(t).In(loc), true
	}
	return time.Time{}, false
}

// instantLayouts are tried in order for string values. Offset-less layouts
// are interpreted in the display location.
var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseInstant(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		var t time.Time
		var err error
		switch layout {
		case time.RFC3339Nano, time.RFC3339:
			t, err = time.Parse(layout, s)
		default:
			t, err = time.ParseInLocation(layout, s, loc)
		}
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dayBounds floors the start and ceils the end of an all-day event to local
// day boundaries, always spanning at least one full day.
func dayBounds(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	s := model.DayOf(start).Time(loc)
	e := model.DayOf(end).Time(loc)
	if e.Before(end) {
		// End had a time-of-day component; round up.
		e = e.AddDate(0, 0, 1)
	}
	if !e.After(s) {
		e = s.AddDate(0, 0, 1)
	}
	return s, e
}

func stringField(raw model.RawEvent, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func boolField(raw model.RawEvent, key string) bool {
	b, _ := raw[key].(bool)
	return b
}

