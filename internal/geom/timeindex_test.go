package geom

import (
	"testing"
	"time"
)

func TestSegmentIDOf(t *testing.T) {
	total := TotalVisibleSegments(7)
	if total != 144 {
		t.Fatalf("total = %d, want 144", total)
	}
	if got := SegmentIDOf(0, 0, total); got != 143 {
		t.Errorf("SegmentIDOf(0,0) = %d, want 143", got)
	}
	if got := SegmentIDOf(5, 23, total); got != 0 {
		t.Errorf("SegmentIDOf(5,23) = %d, want 0", got)
	}

	prev := SegmentIDOf(-2, 0, total)
	for day := -2; day < 8; day++ {
		for seg := 0; seg < HoursPerDay; seg++ {
			if day == -2 && seg == 0 {
				continue
			}
			id := SegmentIDOf(day, seg, total)
			if id != prev-1 {
				t.Fatalf("id not decreasing by one at (%d,%d): %d after %d", day, seg, id, prev)
			}
			prev = id
		}
	}
}

func TestSegmentIDOfDateTime_RoundsTowardReference(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		offset time.Duration
		want   int
	}{
		{0, 0},
		{90 * time.Minute, 1},
		{2 * time.Hour, 2},
		{-30 * time.Minute, 0},
		{-90 * time.Minute, -1},
		{-2 * time.Hour, -2},
	}
	for _, c := range cases {
		if got := SegmentIDOfDateTime(ref.Add(c.offset), ref); got != c.want {
			t.Errorf("offset %v: got %d, want %d", c.offset, got, c.want)
		}
	}
}

func TestDateTimeOfSegment(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := DateTimeOfSegment(-5, ref); !got.Equal(ref.Add(-5 * time.Hour)) {
		t.Errorf("got %v", got)
	}
}

func TestReferenceFor(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	now := time.Date(2025, 6, 2, 3, 0, 0, 0, loc) // 2025-06-01 18:00 UTC
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := ReferenceFor(now); !got.Equal(want) {
		t.Errorf("ReferenceFor = %v, want %v", got, want)
	}
}

func TestCellOf_InvertsSegmentTime(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for day := -3; day < 9; day++ {
		for seg := 0; seg < HoursPerDay; seg++ {
			start := SegmentTime(day, seg, 7, ref)
			for _, off := range []time.Duration{0, 59 * time.Minute} {
				got := CellOf(start.Add(off), ref, 7)
				if got.Day != day || got.Segment != seg {
					t.Fatalf("CellOf(%v) = %+v, want (%d,%d)", start.Add(off), got, day, seg)
				}
			}
		}
	}
}
