package model

import (
	"errors"
	"sort"
	"time"
)

var (
	ErrNotFound     = errors.New("event not found")
	ErrInvalidRange = errors.New("event end is before start")
)

// EventList is the in-memory event collection of one rendering session.
//
// Every mutation bumps Version; the layout cache keys on it, so callers must
// mutate through these methods and never edit the returned slices.
type EventList struct {
	events  []Event
	index   map[string]int
	version uint64
}

func NewEventList(events ...Event) *EventList {
	l := &EventList{index: make(map[string]int)}
	for _, ev := range events {
		_ = l.Add(ev)
	}
	l.version = 0
	return l
}

// Version is the eventsVersion counter.
func (l *EventList) Version() uint64 {
	return l.version
}

func (l *EventList) Len() int {
	return len(l.events)
}

// Add inserts ev, assigning a PersistentUID if it has none. An event with an
// existing UID replaces the stored one.
func (l *EventList) Add(ev Event) error {
	if ev.End.Before(ev.Start) {
		return ErrInvalidRange
	}
	if ev.PersistentUID == "" {
		ev.PersistentUID = NewPersistentUID()
	}
	if ev.LastModified.IsZero() {
		ev.LastModified = time.Now().UTC()
	}
	if i, ok := l.index[ev.PersistentUID]; ok {
		l.events[i] = ev
	} else {
		l.index[ev.PersistentUID] = len(l.events)
		l.events = append(l.events, ev)
	}
	l.version++
	return nil
}

// Update replaces the event with the same PersistentUID.
func (l *EventList) Update(ev Event) error {
	i, ok := l.index[ev.PersistentUID]
	if !ok {
		return ErrNotFound
	}
	if ev.End.Before(ev.Start) {
		return ErrInvalidRange
	}
	ev.LastModified = time.Now().UTC()
	l.events[i] = ev
	l.version++
	return nil
}

func (l *EventList) Remove(uid string) error {
	i, ok := l.index[uid]
	if !ok {
		return ErrNotFound
	}
	l.events = append(l.events[:i], l.events[i+1:]...)
	l.reindex()
	l.version++
	return nil
}

// ReplaceCalendar swaps every event of the given calendar for events in one
// version bump. Used by ICS refreshes.
func (l *EventList) ReplaceCalendar(calendar string, events []Event) {
	kept := l.events[:0]
	for _, ev := range l.events {
		if ev.Calendar != calendar {
			kept = append(kept, ev)
		}
	}
	l.events = kept
	l.reindex()
	for _, ev := range events {
		ev.Calendar = calendar
		if ev.PersistentUID == "" {
			ev.PersistentUID = NewPersistentUID()
		}
		if i, ok := l.index[ev.PersistentUID]; ok {
			l.events[i] = ev
			continue
		}
		l.index[ev.PersistentUID] = len(l.events)
		l.events = append(l.events, ev)
	}
	l.version++
}

func (l *EventList) Get(uid string) (Event, bool) {
	i, ok := l.index[uid]
	if !ok {
		return Event{}, false
	}
	return l.events[i], true
}

// All returns a copy of the events in insertion order.
func (l *EventList) All() []Event {
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// InRange returns events intersecting [start, end), ordered by start then
// PersistentUID so callers get a deterministic order.
func (l *EventList) InRange(start, end time.Time) []Event {
	out := make([]Event, 0)
	for _, ev := range l.events {
		if ev.Overlaps(start, end) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].PersistentUID < out[j].PersistentUID
	})
	return out
}

func (l *EventList) reindex() {
	l.index = make(map[string]int, len(l.events))
	for i, ev := range l.events {
		l.index[ev.PersistentUID] = i
	}
}
