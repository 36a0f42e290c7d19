package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "famcal/internal/log"
	"famcal/internal/model"
)

// Parse parses a single ICS payload into RawEvent records for the
// normalizer. The adapter deliberately emits the application's canonical
// record shape (id, title, nested start/end dateTime, allDay) instead of a
// dedicated type, so ICS-fed events flow through exactly the same
// normalization path as events from any other source.
//
// Recurrence rules are not expanded here; recurring VEVENTs contribute their
// base occurrence only.
func Parse(src Source, body []byte) ([]model.RawEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]model.RawEvent, 0)

	for _, comp := range cal.Events() {
		raw, perr := parseVEvent(src, comp)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		events = append(events, raw)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (model.RawEvent, error) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return nil, errors.New("missing UID")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return nil, err
	}

	raw := model.RawEvent{
		"id": src.ID + "/" + uidProp.Value,
		"start": map[string]any{
			"dateTime": start.Format(time.RFC3339),
		},
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		raw["title"] = p.Value
	}
	if src.Name != "" {
		raw["category"] = src.Name
	}

	if end, err := ve.GetEndAt(); err == nil && !end.IsZero() {
		raw["end"] = map[string]any{
			"dateTime": end.Format(time.RFC3339),
		}
	}

	if isAllDay(ve) {
		raw["allDay"] = true
	}

	return raw, nil
}

// isAllDay detects all-day VEVENTs by inspecting the DTSTART value format:
// VALUE=DATE, or a value without a time component.
func isAllDay(ve *ical.VEvent) bool {
	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return false
	}
	if params := dtStart.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(dtStart.Value, "T")
}
