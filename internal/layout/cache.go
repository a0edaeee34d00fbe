package layout

import (
	"sort"
	"time"

	appLog "spiralcal/internal/log"
	"spiralcal/internal/model"
)

// TimeWindow is the visible time span, half-open.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// LayoutCache holds window-wide lane assignments keyed by PersistentUID.
//
// Within one overlap component lanes are contiguous from 0 and no two
// overlapping events share a lane.
type LayoutCache struct {
	Window  TimeWindow
	Version uint64

	EventToLane        map[string]int
	EventToComponent   map[string]int
	ComponentLaneCount map[int]int

	events     []model.Event
	maxOverlap map[string]int
	stale      bool
}

// Events returns the window's events ordered by start.
func (c *LayoutCache) Events() []model.Event {
	return c.events
}

// RequiredLanes is the lane count of the event's window-wide component.
func (c *LayoutCache) RequiredLanes(id string) int {
	comp, ok := c.EventToComponent[id]
	if !ok {
		return 0
	}
	return c.ComponentLaneCount[comp]
}

func (c *LayoutCache) requiredMap() map[string]int {
	out := make(map[string]int, len(c.EventToComponent))
	for id, comp := range c.EventToComponent {
		out[id] = c.ComponentLaneCount[comp]
	}
	return out
}

// HourLayout lays out the hour starting at hourStart using the cached lanes.
func (c *LayoutCache) HourLayout(hourStart time.Time) ([]HourEvent, HourLanes) {
	hevs := HourEventsFor(c.events, hourStart)
	return hevs, ComputeLanesForHour(hevs, c.EventToLane, c.requiredMap())
}

// MaxOverlapAcrossHours is the largest group lane count the event sees in
// any hour it spans, so it can be drawn with one thickness everywhere.
func (c *LayoutCache) MaxOverlapAcrossHours(id string) int {
	if v, ok := c.maxOverlap[id]; ok {
		return v
	}
	ev, ok := c.find(id)
	if !ok {
		return 0
	}
	best := 0
	hour := ev.Start.UTC().Truncate(time.Hour)
	for ; hour.Before(ev.End); hour = hour.Add(time.Hour) {
		hevs, lanes := c.HourLayout(hour)
		for i, h := range hevs {
			if h.ID == id && lanes.GroupLaneCount[i] > best {
				best = lanes.GroupLaneCount[i]
			}
		}
	}
	c.maxOverlap[id] = best
	return best
}

func (c *LayoutCache) find(id string) (model.Event, bool) {
	for _, ev := range c.events {
		if ev.PersistentUID == id {
			return ev, true
		}
	}
	return model.Event{}, false
}

// Engine owns the layout cache of one rendering session.
type Engine struct {
	cache *LayoutCache

	// Builds counts full rebuilds.
	Builds int
}

func NewEngine() *Engine {
	return &Engine{}
}

// Invalidate drops the cache; the next Ensure rebuilds it while still
// preferring the previous lanes.
func (e *Engine) Invalidate() {
	if e.cache != nil {
		e.cache.stale = true
	}
}

// Ensure returns the cache for (window, events.Version()), rebuilding it only
// when either changed.
func (e *Engine) Ensure(w TimeWindow, events *model.EventList) *LayoutCache {
	version := events.Version()
	if c := e.cache; c != nil && !c.stale && c.Version == version && c.Window.Start.Equal(w.Start) && c.Window.End.Equal(w.End) {
		return c
	}
	var previous map[string]int
	if e.cache != nil {
		previous = e.cache.EventToLane
	}
	e.cache = buildCache(w, version, events.InRange(w.Start, w.End), previous)
	e.Builds++
	appLog.Debug("layout cache rebuilt",
		"version", version,
		"events", len(e.cache.events),
		"components", len(e.cache.ComponentLaneCount),
	)
	return e.cache
}

func buildCache(w TimeWindow, version uint64, events []model.Event, previous map[string]int) *LayoutCache {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		if !events[i].End.Equal(events[j].End) {
			return events[i].End.Before(events[j].End)
		}
		return events[i].PersistentUID < events[j].PersistentUID
	})

	c := &LayoutCache{
		Window:             w,
		Version:            version,
		EventToLane:        make(map[string]int, len(events)),
		EventToComponent:   make(map[string]int, len(events)),
		ComponentLaneCount: make(map[int]int),
		events:             events,
		maxOverlap:         make(map[string]int),
	}

	uf := NewUnionFind(len(events))
	for i := range events {
		for j := i + 1; j < len(events); j++ {
			if !events[j].Start.Before(events[i].End) {
				break
			}
			if events[j].End.After(events[i].Start) {
				uf.Union(i, j)
			}
		}
	}

	for comp, members := range uf.Components() {
		lanes := assignComponentLanes(events, members, previous)
		for _, i := range members {
			id := events[i].PersistentUID
			c.EventToLane[id] = lanes[i]
			c.EventToComponent[id] = comp
			if lanes[i]+1 > c.ComponentLaneCount[comp] {
				c.ComponentLaneCount[comp] = lanes[i] + 1
			}
		}
	}
	return c
}

// assignComponentLanes places members that had a lane before first, then
// the rest greedily in start order, and finally compacts.
func assignComponentLanes(events []model.Event, members []int, previous map[string]int) map[int]int {
	overlap := func(i, j int) bool {
		return events[i].Start.Before(events[j].End) && events[j].Start.Before(events[i].End)
	}
	free := func(assigned map[int]int, i, lane int) bool {
		for j, l := range assigned {
			if l == lane && overlap(i, j) {
				return false
			}
		}
		return true
	}

	var known, fresh []int
	for _, i := range members {
		if _, ok := previous[events[i].PersistentUID]; ok {
			known = append(known, i)
		} else {
			fresh = append(fresh, i)
		}
	}
	sort.SliceStable(known, func(a, b int) bool {
		return previous[events[known[a]].PersistentUID] < previous[events[known[b]].PersistentUID]
	})

	assigned := make(map[int]int, len(members))
	place := func(i, want int) {
		lane := want
		if lane < 0 || !free(assigned, i, lane) {
			lane = 0
			for !free(assigned, i, lane) {
				lane++
			}
		}
		assigned[i] = lane
	}
	for _, i := range known {
		place(i, previous[events[i].PersistentUID])
	}
	for _, i := range fresh {
		place(i, -1)
	}

	compact, _ := compactLanes(assigned)
	return compact
}
