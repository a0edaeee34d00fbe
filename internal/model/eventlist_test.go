package model

import (
	"errors"
	"testing"
	"time"
)

var base = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func TestEventList_WhenMutated_ShouldBumpVersion(t *testing.T) {
	l := NewEventList()
	if l.Version() != 0 {
		t.Fatalf("fresh list version = %d, want 0", l.Version())
	}

	ev := Event{Title: "standup", Start: at(9, 0), End: at(9, 15)}
	if err := l.Add(ev); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if l.Version() != 1 {
		t.Errorf("after Add version = %d, want 1", l.Version())
	}

	stored := l.All()[0]
	if stored.PersistentUID == "" {
		t.Fatal("Add should assign a PersistentUID")
	}

	stored.End = at(9, 30)
	if err := l.Update(stored); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if l.Version() != 2 {
		t.Errorf("after Update version = %d, want 2", l.Version())
	}

	if err := l.Remove(stored.PersistentUID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if l.Version() != 3 || l.Len() != 0 {
		t.Errorf("after Remove version=%d len=%d", l.Version(), l.Len())
	}
}

func TestEventList_WhenUnknownUID_ShouldReturnNotFound(t *testing.T) {
	l := NewEventList()
	if err := l.Remove("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove err = %v, want ErrNotFound", err)
	}
	if err := l.Update(Event{PersistentUID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update err = %v, want ErrNotFound", err)
	}
	if l.Version() != 0 {
		t.Errorf("failed mutations must not bump version, got %d", l.Version())
	}
}

func TestEventList_WhenEndBeforeStart_ShouldReject(t *testing.T) {
	l := NewEventList()
	err := l.Add(Event{Start: at(10, 0), End: at(9, 0)})
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("err = %v, want ErrInvalidRange", err)
	}
}

func TestEventList_InRange_ShouldUseHalfOpenIntervals(t *testing.T) {
	l := NewEventList(
		Event{PersistentUID: "b", Start: at(10, 0), End: at(11, 0)},
		Event{PersistentUID: "a", Start: at(10, 0), End: at(10, 30)},
		Event{PersistentUID: "c", Start: at(11, 0), End: at(12, 0)},
		Event{PersistentUID: "d", Start: at(8, 0), End: at(10, 0)},
	)

	got := l.InRange(at(10, 0), at(11, 0))
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].PersistentUID != "a" || got[1].PersistentUID != "b" {
		t.Errorf("order = %s,%s want a,b", got[0].PersistentUID, got[1].PersistentUID)
	}
}

func TestEventList_ReplaceCalendar_ShouldKeepOtherCalendars(t *testing.T) {
	l := NewEventList(
		Event{PersistentUID: "mine", Calendar: "Home", Start: at(8, 0), End: at(9, 0)},
		Event{PersistentUID: "old", Calendar: "work", Start: at(9, 0), End: at(10, 0)},
	)
	v := l.Version()

	l.ReplaceCalendar("work", []Event{
		{PersistentUID: "new", Start: at(11, 0), End: at(12, 0)},
	})

	if l.Version() != v+1 {
		t.Errorf("ReplaceCalendar should bump version once, got %d -> %d", v, l.Version())
	}
	if _, ok := l.Get("old"); ok {
		t.Error("old work event should be gone")
	}
	if ev, ok := l.Get("new"); !ok || ev.Calendar != "work" {
		t.Errorf("new event = %+v, %v", ev, ok)
	}
	if _, ok := l.Get("mine"); !ok {
		t.Error("Home event should be kept")
	}
}

func TestPersistentUIDFor_ShouldBeStable(t *testing.T) {
	a := PersistentUIDFor("uid-1|2025-03-10T09:00:00Z")
	b := PersistentUIDFor("uid-1|2025-03-10T09:00:00Z")
	c := PersistentUIDFor("uid-1|2025-03-11T09:00:00Z")
	if a != b {
		t.Errorf("same key gave %s and %s", a, b)
	}
	if a == c {
		t.Error("different keys should give different ids")
	}
}
