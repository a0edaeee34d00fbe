package ics

import (
	"bytes"
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"spiralcal/internal/model"
)

const productID = "-//spiralcal//spiral calendar//EN"

// Export writes events as a VCALENDAR with the PersistentUID as UID and the
// calendar name as CATEGORIES.
func Export(w io.Writer, name string, events []model.Event) error {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	stamp := time.Now().UTC()
	for _, ev := range events {
		ve := cal.AddEvent(ev.PersistentUID)
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Color != "" {
			ve.SetColor(ev.Color)
		}
		if ev.Calendar != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, ev.Calendar)
		}
		if !ev.LastModified.IsZero() {
			ve.SetModifiedAt(ev.LastModified)
		}
	}

	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("ics: export: %w", err)
	}
	return nil
}

// Import parses an uploaded calendar into events for one calendar name.
// Recurring series are expanded within [from, to).
func Import(calendar string, body []byte, from, to time.Time) ([]model.Event, error) {
	parsed, err := ParseICS(Source{ID: calendar}, bytes.TrimSpace(body))
	if err != nil {
		return nil, err
	}
	res, err := ExpandOccurrences(parsed, ExpandConfig{RangeStart: from, RangeEnd: to})
	if err != nil {
		return nil, err
	}
	return res.Events, nil
}
