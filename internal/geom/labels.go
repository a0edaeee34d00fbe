package geom

import (
	"fmt"
	"sort"
	"time"
)

// HourLabelPosition picks which edge of a cell its hour number sits on.
type HourLabelPosition int

const (
	LabelStartAligned HourLabelPosition = iota
	LabelEndAligned
)

func (p HourLabelPosition) String() string {
	switch p {
	case LabelStartAligned:
		return "start"
	case LabelEndAligned:
		return "end"
	}
	return fmt.Sprintf("HourLabelPosition(%d)", int(p))
}

// ParseHourLabelPosition accepts "start"/"end"; anything else is start.
func ParseHourLabelPosition(s string) HourLabelPosition {
	if s == "end" {
		return LabelEndAligned
	}
	return LabelStartAligned
}

// HourLabelPlacement puts labels outside the outer edge or inside the inner
// edge of the band.
type HourLabelPlacement int

const (
	PlacementOutside HourLabelPlacement = iota
	PlacementInside
)

func (p HourLabelPlacement) String() string {
	switch p {
	case PlacementOutside:
		return "outside"
	case PlacementInside:
		return "inside"
	}
	return fmt.Sprintf("HourLabelPlacement(%d)", int(p))
}

func ParseHourLabelPlacement(s string) HourLabelPlacement {
	if s == "inside" {
		return PlacementInside
	}
	return PlacementOutside
}

// MaxHourLabels is one label per hour of a turn.
const MaxHourLabels = HoursPerDay

// LabelThreshold is the minimum visibility fraction a candidate needs before
// backfilling kicks in.
func LabelThreshold(placement HourLabelPlacement, pos HourLabelPosition) float64 {
	switch placement {
	case PlacementOutside:
		switch pos {
		case LabelStartAligned:
			return 0.66
		case LabelEndAligned:
			return 0.33
		}
	case PlacementInside:
		switch pos {
		case LabelStartAligned:
			return 0.17
		case LabelEndAligned:
			return 0.83
		}
	}
	return 0.5
}

// HourLabel is a chosen label anchor.
type HourLabel struct {
	SegmentIndex
	Theta      float64 `json:"theta"`
	Radius     float64 `json:"radius"`
	Visibility float64 `json:"visibility"`
	Hour       int     `json:"hour"`
}

// SelectHourLabels chooses up to 24 label anchors among the visible cells:
// outermost first, then most visible, keeping only candidates over the
// threshold and backfilling with the most visible remainder.
func SelectHourLabels(segs []SegmentDescriptor, p RadiusParams, placement HourLabelPlacement, pos HourLabelPosition, days int, ref time.Time, loc *time.Location) []HourLabel {
	if loc == nil {
		loc = time.UTC
	}
	candidates := make([]HourLabel, 0, len(segs))
	for _, d := range segs {
		theta := d.StartTheta
		if pos == LabelEndAligned {
			theta = d.EndTheta
		}
		inner, outer := p.Band(d.Day, d.MidTheta())
		r := outer
		if placement == PlacementInside {
			r = inner
		}
		if !(r > 0) {
			continue
		}
		t := d.Time(days, ref)
		if pos == LabelEndAligned {
			// End-aligned labels name the hour the cell ends on.
			t = t.Add(time.Hour)
		}
		candidates = append(candidates, HourLabel{
			SegmentIndex: d.Index(),
			Theta:        theta,
			Radius:       r,
			Visibility:   d.VisibilityFraction,
			Hour:         t.In(loc).Hour(),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Radius != candidates[j].Radius {
			return candidates[i].Radius > candidates[j].Radius
		}
		return candidates[i].Visibility > candidates[j].Visibility
	})

	threshold := LabelThreshold(placement, pos)
	out := make([]HourLabel, 0, MaxHourLabels)
	rest := make([]HourLabel, 0)
	for _, c := range candidates {
		if c.Visibility >= threshold && len(out) < MaxHourLabels {
			out = append(out, c)
			continue
		}
		rest = append(rest, c)
	}
	if len(out) < MaxHourLabels {
		sort.SliceStable(rest, func(i, j int) bool {
			return rest[i].Visibility > rest[j].Visibility
		})
		for _, c := range rest {
			if len(out) == MaxHourLabels {
				break
			}
			out = append(out, c)
		}
	}
	return out
}
