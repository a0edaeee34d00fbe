package model

import (
	"time"

	"github.com/google/uuid"
)

// Event is one calendar entry shown on the spiral.
//
// Start/End are absolute instants; layout code always compares them in UTC.
// PersistentUID is the identity used by the layout cache, so it must survive
// edits, reloads and ICS refreshes.
type Event struct {
	PersistentUID string `json:"persistent_uid"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Color is a CSS color ("#rrggbb"); empty means "let the color mode decide".
	Color string `json:"color,omitempty"`

	// Calendar names the calendar the event belongs to. Imported ICS events
	// carry their source ID here.
	Calendar string `json:"calendar"`

	AddedToCalendar bool      `json:"added_to_calendar"`
	LastModified    time.Time `json:"last_modified"`
}

// uidNamespace scopes name-based ids derived from iCalendar UIDs.
var uidNamespace = uuid.MustParse("6f1c1e52-0b8e-4e53-9a5e-2f4f7e0c9d11")

// NewPersistentUID returns a fresh random id for a user-created event.
func NewPersistentUID() string {
	return uuid.NewString()
}

// PersistentUIDFor derives a stable id from an external key (for example an
// iCalendar UID plus instance key), so re-importing the same occurrence keeps
// its identity and therefore its lane.
func PersistentUIDFor(key string) string {
	return uuid.NewSHA1(uidNamespace, []byte(key)).String()
}

// Overlaps reports whether e intersects the half-open range [start, end).
func (e Event) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && e.End.After(start)
}

// Duration is End-Start, never negative.
func (e Event) Duration() time.Duration {
	if e.End.Before(e.Start) {
		return 0
	}
	return e.End.Sub(e.Start)
}
