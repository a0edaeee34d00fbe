package web

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"spiralcal/internal/ics"
	appLog "spiralcal/internal/log"
	"spiralcal/internal/model"
)

// eventInput is the request body for creating or updating an event. On
// update, omitted optional fields keep their stored values.
type eventInput struct {
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Color       *string   `json:"color"`
	Calendar    *string   `json:"calendar"`
}

// newEvent builds a user-created event; the calendar defaults to "Home".
func (in eventInput) newEvent() model.Event {
	return in.mergeInto(model.Event{Calendar: "Home"})
}

// mergeInto applies the input to ev, keeping identity and import metadata.
func (in eventInput) mergeInto(ev model.Event) model.Event {
	ev.Title = strings.TrimSpace(in.Title)
	ev.Start = in.Start.UTC()
	ev.End = in.End.UTC()
	if in.Description != nil {
		ev.Description = *in.Description
	}
	if in.Color != nil {
		ev.Color = *in.Color
	}
	if in.Calendar != nil && *in.Calendar != "" {
		ev.Calendar = *in.Calendar
	}
	return ev
}

func (in eventInput) validate() error {
	if in.Start.IsZero() || in.End.IsZero() {
		return errors.New("start and end are required")
	}
	if in.End.Before(in.Start) {
		return errors.New("end is before start")
	}
	return nil
}

// GET /api/events[?from=RFC3339&to=RFC3339]
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, errFrom := time.Parse(time.RFC3339, q.Get("from"))
	to, errTo := time.Parse(time.RFC3339, q.Get("to"))

	events := s.sess.Events()
	if errFrom == nil && errTo == nil {
		filtered := make([]model.Event, 0, len(events))
		for _, ev := range events {
			if ev.Overlaps(from, to) {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events":         events,
		"events_version": s.sess.EventsVersion(),
	})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in eventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := in.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := s.sess.AddEvent(in.newEvent())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	var in eventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := in.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := s.sess.EditEvent(uid, in.mergeInto)
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusOK, ev)
	}
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	err := s.sess.DeleteEvent(r.PathValue("uid"))
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := ics.Export(&buf, "spiralcal", s.sess.Events()); err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="spiralcal.ics"`)
	_, _ = w.Write(buf.Bytes())
}

// POST /api/import?calendar=name with an ICS body. The calendar's events are
// replaced by the file's events.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	calendar := strings.TrimSpace(r.URL.Query().Get("calendar"))
	if calendar == "" {
		calendar = "Imported"
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 16<<20))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	from, to := s.sess.ExpansionWindow()
	events, err := ics.Import(calendar, body, from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.sess.ReplaceCalendar(calendar, events)
	writeJSON(w, http.StatusOK, map[string]any{"calendar": calendar, "imported": len(events)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresh == nil {
		writeError(w, http.StatusNotImplemented, "no calendar subscriptions configured")
		return
	}
	if err := s.refresh(r.Context()); err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events_version": s.sess.EventsVersion()})
}
