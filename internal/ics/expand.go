package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "spiralcal/internal/log"
	"spiralcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// RangeStart/RangeEnd is the window occurrences must intersect.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps each series; zero means the default.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the expanded events and the series that hit the cap.
type ExpandResult struct {
	Events          []model.Event
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed VEVENTs into concrete events. Series are
// expanded with their RRULE and EXDATEs; RECURRENCE-ID overrides replace the
// matching instance. Every occurrence gets a PersistentUID derived from
// (source, UID, original start), so refreshes keep the same ids.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("ics: expand range end is before start")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	bases := make(map[string][]ParsedEvent)
	overrides := make(map[string][]ParsedEvent)
	var uids []string
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}
	sort.Strings(uids)

	for _, uid := range uids {
		for _, base := range bases[uid] {
			out, capped := expandEvent(base, overrides[uid], cfg)
			result.Events = append(result.Events, out...)
			if capped {
				result.TruncatedEvents = append(result.TruncatedEvents, uid)
				appLog.Warn("ics expansion capped", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
			}
		}
	}

	sort.SliceStable(result.Events, func(i, j int) bool {
		a, b := result.Events[i], result.Events[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.PersistentUID < b.PersistentUID
	})
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	if ev.RawRRule == "" {
		o, start, end := applyOverride(ev, overrides, ev.Start, ev.End)
		if !intersects(start, end, cfg) {
			return nil, false
		}
		return []model.Event{makeEvent(o, ev.Start, start, end)}, false
	}

	opt, err := rrule.StrToROptionInLocation(ev.RawRRule, ev.Start.Location())
	if err != nil {
		appLog.Error("ics rrule parse failed", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("ics rrule invalid", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}

	set := rrule.Set{}
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the duration so instances that started before
	// the window but are still running are included.
	dur := ev.End.Sub(ev.Start)
	loc := ev.Start.Location()
	starts := set.Between(cfg.RangeStart.Add(-dur).In(loc), cfg.RangeEnd.In(loc), true)

	capped := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		capped = true
	}

	out := make([]model.Event, 0, len(starts))
	for _, s := range starts {
		e := s.Add(dur)
		if ev.AllDay {
			day := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			s, e = day, day.AddDate(0, 0, 1)
		}
		o, start, end := applyOverride(ev, overrides, s, e)
		if !intersects(start, end, cfg) {
			continue
		}
		out = append(out, makeEvent(o, s, start, end))
	}
	return out, capped
}

func applyOverride(base ParsedEvent, overrides []ParsedEvent, start, end time.Time) (ParsedEvent, time.Time, time.Time) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, o.Start, o.End
		}
	}
	return base, start, end
}

func intersects(start, end time.Time, cfg ExpandConfig) bool {
	if end.Equal(start) {
		return !start.Before(cfg.RangeStart) && start.Before(cfg.RangeEnd)
	}
	return start.Before(cfg.RangeEnd) && end.After(cfg.RangeStart)
}

// makeEvent keys the persistent id on the original instance start so an
// override keeps the id of the occurrence it replaces.
func makeEvent(ev ParsedEvent, instance, start, end time.Time) model.Event {
	key := fmt.Sprintf("%s|%s|%s", ev.Source.ID, ev.UID, instance.UTC().Format(time.RFC3339))
	return model.Event{
		PersistentUID:   model.PersistentUIDFor(key),
		Title:           ev.Summary,
		Description:     ev.Description,
		Start:           start.UTC(),
		End:             end.UTC(),
		Color:           ev.Color,
		Calendar:        ev.Source.ID,
		AddedToCalendar: true,
		LastModified:    ev.Modified.UTC(),
	}
}
