package session

import (
	"fmt"
	"time"

	"spiralcal/internal/geom"
	appLog "spiralcal/internal/log"
	"spiralcal/internal/model"
)

// Every mutation below goes through model.EventList, which bumps the events
// version before the lock is released, so the next frame sees the edit.

func (s *Session) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.All()
}

func (s *Session) EventsVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.Version()
}

func (s *Session) Event(uid string) (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.Get(uid)
}

// AddEvent stores ev and returns it with its assigned PersistentUID.
func (s *Session) AddEvent(ev model.Event) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.PersistentUID == "" {
		ev.PersistentUID = model.NewPersistentUID()
	}
	if err := s.events.Add(ev); err != nil {
		return model.Event{}, fmt.Errorf("session: add event: %w", err)
	}
	stored, _ := s.events.Get(ev.PersistentUID)
	appLog.Info("event added", "uid", stored.PersistentUID, "title", stored.Title)
	s.persistLocked()
	return stored, nil
}

func (s *Session) UpdateEvent(ev model.Event) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.events.Update(ev); err != nil {
		return model.Event{}, fmt.Errorf("session: update event %s: %w", ev.PersistentUID, err)
	}
	stored, _ := s.events.Get(ev.PersistentUID)
	s.persistLocked()
	return stored, nil
}

// EditEvent replaces the stored event with fn(stored) under the session
// lock. The PersistentUID cannot be changed.
func (s *Session) EditEvent(uid string, fn func(model.Event) model.Event) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events.Get(uid)
	if !ok {
		return model.Event{}, fmt.Errorf("session: edit event %s: %w", uid, model.ErrNotFound)
	}
	next := fn(cur)
	next.PersistentUID = uid
	if err := s.events.Update(next); err != nil {
		return model.Event{}, fmt.Errorf("session: edit event %s: %w", uid, err)
	}
	stored, _ := s.events.Get(uid)
	s.persistLocked()
	return stored, nil
}

func (s *Session) DeleteEvent(uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.events.Remove(uid); err != nil {
		return fmt.Errorf("session: delete event %s: %w", uid, err)
	}
	appLog.Info("event deleted", "uid", uid)
	s.persistLocked()
	return nil
}

// ReplaceCalendar swaps all events of one calendar in a single mutation.
func (s *Session) ReplaceCalendar(calendar string, events []model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events.ReplaceCalendar(calendar, events)
	appLog.Info("calendar replaced", "calendar", calendar, "events", len(events))
	s.persistLocked()
}

// EventsInSegment lists the events intersecting the cell's hour.
func (s *Session) EventsInSegment(idx geom.SegmentIndex) []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := geom.SegmentTime(idx.Day, idx.Segment, s.state.Days, s.ref)
	return s.events.InRange(start, start.Add(time.Hour))
}

// SegmentDetail is the detail view of one cell.
type SegmentDetail struct {
	geom.SegmentIndex
	Start   time.Time           `json:"start"`
	End     time.Time           `json:"end"`
	Visible bool                `json:"visible"`
	Class   geom.Classification `json:"class"`
	Events  []model.Event       `json:"events"`
}

func (s *Session) SegmentDetail(idx geom.SegmentIndex) SegmentDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	days := s.state.Days
	start := geom.SegmentTime(idx.Day, idx.Segment, days, s.ref)
	d := geom.SegmentDescriptor{Day: idx.Day, Segment: idx.Segment}
	_, visible := geom.FindVisibleSegment(days, s.state.Window(), s.state.RadiusParams(s.vp), idx)
	return SegmentDetail{
		SegmentIndex: idx,
		Start:        start,
		End:          start.Add(time.Hour),
		Visible:      visible,
		Class:        d.Classify(days, s.ref),
		Events:       s.events.InRange(start, start.Add(time.Hour)),
	}
}
