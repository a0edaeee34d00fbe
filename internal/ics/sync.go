package ics

import (
	"context"
	"errors"
	"time"

	appLog "spiralcal/internal/log"
	"spiralcal/internal/model"
)

// CalendarReplacer receives the refreshed events of one calendar.
type CalendarReplacer interface {
	ReplaceCalendar(calendar string, events []model.Event)
}

// Syncer refreshes subscribed calendars into a target.
type Syncer struct {
	Fetcher *Fetcher
	Sources []Source
	Target  CalendarReplacer

	// Window returns the range recurrences are expanded in.
	Window func() (time.Time, time.Time)
}

// Run fetches, parses and expands every source, replacing each calendar's
// events in one mutation. A failing source keeps its previous events.
func (s *Syncer) Run(ctx context.Context) error {
	if len(s.Sources) == 0 {
		return nil
	}
	from, to := s.Window()
	results, errs := s.Fetcher.FetchAll(ctx, s.Sources)

	for _, res := range results {
		parsed, err := ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics sync parse failed", err, "id", res.Source.ID)
			errs = append(errs, err)
			continue
		}
		expanded, err := ExpandOccurrences(parsed, ExpandConfig{RangeStart: from, RangeEnd: to})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.Target.ReplaceCalendar(res.Source.ID, expanded.Events)
		appLog.Info("ics calendar synced", "id", res.Source.ID, "events", len(expanded.Events), "from_cache", res.FromCache)
	}
	return errors.Join(errs...)
}
