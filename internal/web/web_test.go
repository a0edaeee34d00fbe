package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"spiralcal/internal/config"
	"spiralcal/internal/geom"
	"spiralcal/internal/model"
	"spiralcal/internal/session"
)

var ref = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type memSettings struct {
	mu   sync.Mutex
	puts int
	last any
}

func (m *memSettings) PutJSON(_ context.Context, _ string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.last = v
	return nil
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *session.Session) {
	t.Helper()
	cfg := config.DefaultConfig()
	sess := session.New(cfg.State(), cfg.Viewport(), ref, model.NewEventList(), cfg.SessionOptions())
	return NewServer(cfg, sess, opts...), sess
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestEventsCRUD(t *testing.T) {
	s, sess := newTestServer(t)
	h := s.Handler()

	body := `{"title":"Standup","start":"2025-03-10T09:00:00Z","end":"2025-03-10T09:30:00Z","color":"#336699"}`
	rec := do(t, h, http.MethodPost, "/api/events", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	created := decode[model.Event](t, rec)
	if created.PersistentUID == "" || created.Calendar != "Home" {
		t.Fatalf("created = %+v", created)
	}

	update := `{"title":"Standup (moved)","start":"2025-03-10T10:00:00Z","end":"2025-03-10T10:30:00Z"}`
	rec = do(t, h, http.MethodPut, "/api/events/"+created.PersistentUID, update)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rec.Code, rec.Body.String())
	}
	if ev, _ := sess.Event(created.PersistentUID); ev.Title != "Standup (moved)" || ev.Start.Hour() != 10 {
		t.Errorf("stored = %+v", ev)
	}

	rec = do(t, h, http.MethodGet, "/api/events?from=2025-03-10T10:00:00Z&to=2025-03-10T11:00:00Z", "")
	list := decode[struct {
		Events []model.Event `json:"events"`
	}](t, rec)
	if len(list.Events) != 1 {
		t.Errorf("filtered list = %d events", len(list.Events))
	}

	if rec := do(t, h, http.MethodPut, "/api/events/missing", update); rec.Code != http.StatusNotFound {
		t.Errorf("update missing = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/events/"+created.PersistentUID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/events/"+created.PersistentUID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
}

func TestCreateEvent_Validation(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	cases := []string{
		`not json`,
		`{"title":"x"}`,
		`{"title":"x","start":"2025-03-10T10:00:00Z","end":"2025-03-10T09:00:00Z"}`,
		`{"title":"x","start":"2025-03-10T09:00:00Z","end":"2025-03-10T10:00:00Z","bogus":1}`,
	}
	for _, body := range cases {
		if rec := do(t, h, http.MethodPost, "/api/events", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: code = %d, want 400", body, rec.Code)
		}
	}
}

func TestFrameHitAndSegment(t *testing.T) {
	s, sess := newTestServer(t)
	h := s.Handler()
	if _, err := sess.AddEvent(model.Event{Title: "Focus", Start: ref.Add(10 * time.Hour), End: ref.Add(11 * time.Hour)}); err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodGet, "/api/frame", "")
	frame := decode[session.Frame](t, rec)
	if len(frame.Segments) == 0 {
		t.Fatal("frame has no segments")
	}

	st, vp := sess.State(), sess.Viewport()
	p := st.RadiusParams(vp)
	idx := geom.CellOf(ref.Add(10*time.Hour), ref, st.Days)
	d, ok := geom.FindVisibleSegment(st.Days, st.Window(), p, idx)
	if !ok {
		t.Fatal("event hour not visible")
	}
	inner, outer := p.Band(d.Day, d.MidTheta())
	x, y := geom.PointAt(d.MidTheta(), (inner+outer)/2, st, vp)

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/hit?x=%f&y=%f", x, y), "")
	hit := decode[hitResponse](t, rec)
	if !hit.Hit || *hit.Segment != idx || len(hit.Events) != 1 || !hit.Time.Equal(ref.Add(10*time.Hour)) {
		t.Errorf("hit = %+v", hit)
	}

	rec = do(t, h, http.MethodGet, "/api/hit?x=0&y=0", "")
	if miss := decode[hitResponse](t, rec); miss.Hit {
		t.Error("corner should miss")
	}
	if rec := do(t, h, http.MethodGet, "/api/hit?x=a", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad hit query = %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/segment?day=%d&segment=%d", idx.Day, idx.Segment), "")
	detail := decode[session.SegmentDetail](t, rec)
	if !detail.Visible || len(detail.Events) != 1 {
		t.Errorf("detail = %+v", detail)
	}
	if rec := do(t, h, http.MethodGet, "/api/segment?day=1&segment=24", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("segment 24 = %d", rec.Code)
	}
}

func TestRotateAndState(t *testing.T) {
	store := &memSettings{}
	s, sess := newTestServer(t, WithSettingsStore(store))
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/rotate", `{"delta":0.5}`)
	if got := decode[map[string]float64](t, rec)["rotation"]; got != 0.5 {
		t.Errorf("rotation = %v", got)
	}
	rec = do(t, h, http.MethodPost, "/api/rotate", `{"to":-3}`)
	if got := decode[map[string]float64](t, rec)["rotation"]; got != -3 {
		t.Errorf("rotation = %v", got)
	}
	if rec := do(t, h, http.MethodPost, "/api/rotate", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty rotate = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPatch, "/api/state", `{"days":1,"circle_mode":true,"color_mode":"seeded","viewport":{"width":400,"height":400}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch = %d %s", rec.Code, rec.Body.String())
	}
	got := decode[stateResponse](t, rec)
	if got.State.Days != geom.MinDays || !got.State.CircleMode || got.ColorMode != "seeded" || got.State.Rotation != -3 {
		t.Errorf("state = %+v", got)
	}
	if vp := sess.Viewport(); vp.Width != 400 {
		t.Errorf("viewport = %+v", vp)
	}
	if rec := do(t, h, http.MethodPatch, "/api/state", `{"viewport":{"width":0,"height":10}}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad viewport = %d", rec.Code)
	}
	if store.puts != 3 {
		t.Errorf("settings saved %d times, want 3", store.puts)
	}
}

func TestRenderEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	first := do(t, h, http.MethodGet, "/spiral.svg", "")
	if first.Code != http.StatusOK || !strings.HasPrefix(first.Body.String(), "<svg") {
		t.Fatalf("svg = %d %.40q", first.Code, first.Body.String())
	}
	s.svgMu.RLock()
	cached := s.svgCache
	s.svgMu.RUnlock()
	if cached == nil {
		t.Fatal("svg should be cached")
	}
	second := do(t, h, http.MethodGet, "/spiral.svg", "")
	if second.Body.String() != first.Body.String() {
		t.Error("unchanged state should serve the cached svg")
	}

	png := do(t, h, http.MethodGet, "/preview.png", "")
	if png.Header().Get("Content-Type") != "image/png" || !strings.HasPrefix(png.Body.String(), "\x89PNG") {
		t.Errorf("png = %q", png.Header().Get("Content-Type"))
	}

	page := do(t, h, http.MethodGet, "/spiral", "")
	if !strings.Contains(page.Body.String(), `id="spiral"`) {
		t.Error("page missing spiral element")
	}
}

func TestExportImport(t *testing.T) {
	s, sess := newTestServer(t)
	h := s.Handler()
	if _, err := sess.AddEvent(model.Event{Title: "Gym", Start: ref.Add(18 * time.Hour), End: ref.Add(19 * time.Hour)}); err != nil {
		t.Fatal(err)
	}

	exp := do(t, h, http.MethodGet, "/api/export.ics", "")
	if !strings.Contains(exp.Body.String(), "SUMMARY:Gym") {
		t.Fatalf("export = %s", exp.Body.String())
	}

	rec := do(t, h, http.MethodPost, "/api/import?calendar=copy", exp.Body.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("import = %d %s", rec.Code, rec.Body.String())
	}
	if got := len(sess.Events()); got != 2 {
		t.Errorf("events after import = %d, want 2", got)
	}
	if rec := do(t, h, http.MethodPost, "/api/import", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("empty import = %d", rec.Code)
	}
}

func TestRefresh(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := do(t, s.Handler(), http.MethodPost, "/api/refresh", ""); rec.Code != http.StatusNotImplemented {
		t.Errorf("refresh without subscriptions = %d", rec.Code)
	}

	called := false
	s, _ = newTestServer(t, WithRefresh(func(context.Context) error { called = true; return nil }))
	if rec := do(t, s.Handler(), http.MethodPost, "/api/refresh", ""); rec.Code != http.StatusOK || !called {
		t.Errorf("refresh = %d called=%v", rec.Code, called)
	}
}

func TestBasicAuth(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	h := s.Handler()

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health must stay open, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/state", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no credentials = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.SetBasicAuth("u", "p")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with credentials = %d", rec.Code)
	}
}

func TestPatchState_RejectsOversizedViewportAndCapsDays(t *testing.T) {
	s, sess := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPatch, "/api/state", `{"days":2000000,"viewport":{"width":200000,"height":200000,"device_pixel_ratio":8}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized viewport = %d, want 400", rec.Code)
	}
	if st := sess.State(); st.Days != geom.DefaultState().Days {
		t.Errorf("rejected patch changed days to %d", st.Days)
	}
	if vp := sess.Viewport(); vp.Width != 800 {
		t.Errorf("rejected patch changed viewport to %+v", vp)
	}

	rec = do(t, h, http.MethodPatch, "/api/state", `{"days":2000000}`)
	if got := decode[stateResponse](t, rec); got.State.Days != geom.MaxDays {
		t.Errorf("days = %d, want %d", got.State.Days, geom.MaxDays)
	}
}

func TestUpdateEvent_KeepsImportedCalendar(t *testing.T) {
	s, sess := newTestServer(t)
	sess.ReplaceCalendar("work", []model.Event{{
		PersistentUID:   "imp",
		Title:           "Review",
		Description:     "quarterly",
		Start:           ref.Add(14 * time.Hour),
		End:             ref.Add(15 * time.Hour),
		AddedToCalendar: true,
	}})

	body := `{"title":"Review (moved)","start":"2025-03-10T15:00:00Z","end":"2025-03-10T16:00:00Z"}`
	rec := do(t, s.Handler(), http.MethodPut, "/api/events/imp", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rec.Code, rec.Body.String())
	}
	got, _ := sess.Event("imp")
	if got.Calendar != "work" || !got.AddedToCalendar || got.Description != "quarterly" || got.Title != "Review (moved)" {
		t.Errorf("stored = %+v", got)
	}
}
