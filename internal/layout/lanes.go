package layout

import (
	"math"
	"sort"
	"time"

	"spiralcal/internal/model"
)

// HourEvent is an event clipped to one hour cell.
type HourEvent struct {
	ID string

	// StartMinute/EndMinute are clipped to [0, 60].
	StartMinute float64
	EndMinute   float64

	// Start is the unclipped event start, used as a tie breaker.
	Start time.Time
}

// overlapsMinutes is the half-open overlap test: touching ends do not count.
func overlapsMinutes(a, b HourEvent) bool {
	return !(a.EndMinute <= b.StartMinute || b.EndMinute <= a.StartMinute)
}

// HourEventsFor clips the events that intersect [hourStart, hourStart+1h).
func HourEventsFor(events []model.Event, hourStart time.Time) []HourEvent {
	hourStart = hourStart.UTC()
	hourEnd := hourStart.Add(time.Hour)
	out := make([]HourEvent, 0)
	for _, ev := range events {
		if !ev.Overlaps(hourStart, hourEnd) {
			continue
		}
		out = append(out, HourEvent{
			ID:          ev.PersistentUID,
			StartMinute: clampMinute(ev.Start.Sub(hourStart).Minutes()),
			EndMinute:   clampMinute(ev.End.Sub(hourStart).Minutes()),
			Start:       ev.Start.UTC(),
		})
	}
	return out
}

func clampMinute(m float64) float64 {
	return math.Max(0, math.Min(60, m))
}

// HourLanes is the lane layout of one hour. Slices are indexed like the
// input events.
type HourLanes struct {
	// Lanes is the lane each event is drawn in.
	Lanes []int
	// GroupLaneCount is the lane count of the event's overlap group.
	GroupLaneCount []int
	// Group maps an event to its index in Groups.
	Group  []int
	Groups [][]int
	// NumLanes is the largest group lane count in the hour.
	NumLanes int
}

// ComputeLanesForHour lays out the events of one hour.
//
// Events are grouped by minute overlap with a union-find. Inside a group,
// members are visited by (persistent lane or local lane, start, start
// minute) and keep their preferred lane when it is free, so a cached lane
// survives sibling changes. Lanes are then compacted, and the group count is
// raised to the window-wide requirement of its members when that is larger.
//
// persistent and required may be nil.
func ComputeLanesForHour(events []HourEvent, persistent map[string]int, required map[string]int) HourLanes {
	n := len(events)
	res := HourLanes{
		Lanes:          make([]int, n),
		GroupLaneCount: make([]int, n),
		Group:          make([]int, n),
	}
	if n == 0 {
		return res
	}

	uf := NewUnionFind(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if overlapsMinutes(events[i], events[j]) {
				uf.Union(i, j)
			}
		}
	}
	res.Groups = uf.Components()

	local := localLanes(events)

	for g, members := range res.Groups {
		preferred := make(map[int]int, len(members))
		for _, i := range members {
			preferred[i] = local[i]
			if lane, ok := persistent[events[i].ID]; ok {
				preferred[i] = lane
			}
		}

		order := append([]int(nil), members...)
		sort.SliceStable(order, func(a, b int) bool {
			ia, ib := order[a], order[b]
			if preferred[ia] != preferred[ib] {
				return preferred[ia] < preferred[ib]
			}
			if !events[ia].Start.Equal(events[ib].Start) {
				return events[ia].Start.Before(events[ib].Start)
			}
			if events[ia].StartMinute != events[ib].StartMinute {
				return events[ia].StartMinute < events[ib].StartMinute
			}
			return events[ia].ID < events[ib].ID
		})

		assigned := make(map[int]int, len(members))
		for _, i := range order {
			lane := preferred[i]
			if !laneFree(events, assigned, i, lane) {
				lane = lowestFreeLane(events, assigned, i)
			}
			assigned[i] = lane
		}

		compact, unique := compactLanes(assigned)
		need := 0
		maxAssigned := 0
		for _, i := range members {
			if r := required[events[i].ID]; r > need {
				need = r
			}
			if assigned[i] > maxAssigned {
				maxAssigned = assigned[i]
			}
		}
		groupLaneCount := max(need, unique)

		// When the window-wide requirement dominates and the raw lanes fit,
		// draw raw lanes so the event sits at the same height in every hour.
		useRaw := need > unique && maxAssigned < groupLaneCount

		for _, i := range members {
			res.Group[i] = g
			res.GroupLaneCount[i] = groupLaneCount
			if useRaw {
				res.Lanes[i] = assigned[i]
			} else {
				res.Lanes[i] = compact[i]
			}
		}
		if groupLaneCount > res.NumLanes {
			res.NumLanes = groupLaneCount
		}
	}
	return res
}

// localLanes is plain greedy interval coloring in start order, independent
// of input order.
func localLanes(events []HourEvent) []int {
	order := make([]int, len(events))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := events[order[a]], events[order[b]]
		if ea.StartMinute != eb.StartMinute {
			return ea.StartMinute < eb.StartMinute
		}
		if !ea.Start.Equal(eb.Start) {
			return ea.Start.Before(eb.Start)
		}
		return ea.ID < eb.ID
	})
	assigned := make(map[int]int, len(events))
	for _, i := range order {
		assigned[i] = lowestFreeLane(events, assigned, i)
	}
	out := make([]int, len(events))
	for i, lane := range assigned {
		out[i] = lane
	}
	return out
}

func laneFree(events []HourEvent, assigned map[int]int, i, lane int) bool {
	for j, l := range assigned {
		if l == lane && overlapsMinutes(events[i], events[j]) {
			return false
		}
	}
	return true
}

func lowestFreeLane(events []HourEvent, assigned map[int]int, i int) int {
	for lane := 0; ; lane++ {
		if laneFree(events, assigned, i, lane) {
			return lane
		}
	}
}

// compactLanes renumbers the used lanes to 0..k-1 keeping their order.
func compactLanes(assigned map[int]int) (map[int]int, int) {
	used := make([]int, 0, len(assigned))
	seen := make(map[int]bool)
	for _, l := range assigned {
		if !seen[l] {
			seen[l] = true
			used = append(used, l)
		}
	}
	sort.Ints(used)
	rank := make(map[int]int, len(used))
	for r, l := range used {
		rank[l] = r
	}
	out := make(map[int]int, len(assigned))
	for i, l := range assigned {
		out[i] = rank[l]
	}
	return out, len(used)
}
