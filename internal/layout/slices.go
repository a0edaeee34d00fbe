package layout

import "sort"

// Options select the event rendering policy.
type Options struct {
	// Stacked draws overlapping events as stacked bars per sub-interval
	// instead of equal bands.
	Stacked bool

	// UniformThickness gives an event the same band height in every hour it
	// spans (uniform policy only).
	UniformThickness bool
}

// EventSlice is one rectangle in (minute, band fraction) space of an hour
// cell. RadialStart/RadialEnd are fractions of the cell's band, 0 inner.
type EventSlice struct {
	EventID     string
	Lane        int
	StartMinute float64
	EndMinute   float64
	RadialStart float64
	RadialEnd   float64
}

// SlicesForHour turns an hour layout into drawable slices. maxOverlap is
// consulted only for UniformThickness and may be nil.
func SlicesForHour(hevs []HourEvent, lanes HourLanes, opts Options, maxOverlap func(id string) int) []EventSlice {
	if len(hevs) == 0 {
		return nil
	}
	if opts.Stacked {
		return stackedSlices(hevs, lanes)
	}
	return uniformSlices(hevs, lanes, opts, maxOverlap)
}

func uniformSlices(hevs []HourEvent, lanes HourLanes, opts Options, maxOverlap func(string) int) []EventSlice {
	out := make([]EventSlice, 0, len(hevs))
	for i, h := range hevs {
		if h.EndMinute <= h.StartMinute {
			continue
		}
		n := lanes.GroupLaneCount[i]
		if opts.UniformThickness && maxOverlap != nil {
			n = max(n, maxOverlap(h.ID))
		}
		lane := lanes.Lanes[i]
		n = max(n, lane+1)
		out = append(out, EventSlice{
			EventID:     h.ID,
			Lane:        lane,
			StartMinute: h.StartMinute,
			EndMinute:   h.EndMinute,
			RadialStart: float64(lane) / float64(n),
			RadialEnd:   float64(lane+1) / float64(n),
		})
	}
	return out
}

// stackedSlices splits each overlap group at every start/end minute. In each
// sub-interval the active events are ranked by lane and rank r covers
// [r/count, 1], so higher lanes are drawn over the lower ones.
func stackedSlices(hevs []HourEvent, lanes HourLanes) []EventSlice {
	out := make([]EventSlice, 0, len(hevs))
	for _, members := range lanes.Groups {
		bounds := make([]float64, 0, 2*len(members))
		seen := make(map[float64]bool)
		for _, i := range members {
			for _, m := range []float64{hevs[i].StartMinute, hevs[i].EndMinute} {
				if !seen[m] {
					seen[m] = true
					bounds = append(bounds, m)
				}
			}
		}
		sort.Float64s(bounds)

		for k := 0; k+1 < len(bounds); k++ {
			from, to := bounds[k], bounds[k+1]
			active := make([]int, 0, len(members))
			for _, i := range members {
				if hevs[i].StartMinute <= from && hevs[i].EndMinute >= to {
					active = append(active, i)
				}
			}
			if len(active) == 0 {
				continue
			}
			sort.SliceStable(active, func(a, b int) bool {
				la, lb := lanes.Lanes[active[a]], lanes.Lanes[active[b]]
				if la != lb {
					return la < lb
				}
				return hevs[active[a]].StartMinute < hevs[active[b]].StartMinute
			})
			count := float64(len(active))
			for rank, i := range active {
				start := 0.0
				if rank > 0 {
					start = float64(rank) / count
				}
				out = append(out, EventSlice{
					EventID:     hevs[i].ID,
					Lane:        lanes.Lanes[i],
					StartMinute: from,
					EndMinute:   to,
					RadialStart: start,
					RadialEnd:   1,
				})
			}
		}
	}
	return out
}

// Slices is SlicesForHour backed by the cache.
func (c *LayoutCache) Slices(hevs []HourEvent, lanes HourLanes, opts Options) []EventSlice {
	return SlicesForHour(hevs, lanes, opts, c.MaxOverlapAcrossHours)
}
