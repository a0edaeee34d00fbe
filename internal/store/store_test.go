package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"spiralcal/internal/model"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "spiral.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_JSONValues(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	var got map[string]int
	found, err := s.GetJSON(ctx, "missing", &got)
	if err != nil || found {
		t.Fatalf("missing key: found=%v err=%v", found, err)
	}

	if err := s.PutJSON(ctx, "k", map[string]int{"days": 7}); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}
	if err := s.PutJSON(ctx, "k", map[string]int{"days": 9}); err != nil {
		t.Fatalf("PutJSON overwrite: %v", err)
	}
	found, err = s.GetJSON(ctx, "k", &got)
	if err != nil || !found || got["days"] != 9 {
		t.Fatalf("GetJSON = %v found=%v err=%v", got, found, err)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if found, _ := s.GetJSON(ctx, "k", &got); found {
		t.Error("deleted key still found")
	}
}

func TestStore_Events(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	empty, err := s.LoadEvents(ctx)
	if err != nil || len(empty) != 0 {
		t.Fatalf("fresh store events=%v err=%v", empty, err)
	}

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	events := []model.Event{
		{PersistentUID: "a", Title: "one", Start: start, End: start.Add(time.Hour), Calendar: "Home"},
		{Title: "legacy", Start: start, End: start.Add(time.Hour)},
	}
	if err := s.SaveEvents(ctx, events); err != nil {
		t.Fatalf("SaveEvents: %v", err)
	}

	got, err := s.LoadEvents(ctx)
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(got) != 2 || got[0].PersistentUID != "a" || !got[0].Start.Equal(start) {
		t.Fatalf("got %+v", got)
	}
	if got[1].PersistentUID == "" {
		t.Error("legacy event should get a PersistentUID on load")
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spiral.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.PutJSON(ctx, KeySettings, map[string]bool{"circle_mode": true}); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}
	_ = s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	var got map[string]bool
	if found, err := s.GetJSON(ctx, KeySettings, &got); err != nil || !found || !got["circle_mode"] {
		t.Errorf("after reopen got=%v found=%v err=%v", got, found, err)
	}
}
