package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"spiralcal/internal/config"
	appLog "spiralcal/internal/log"
	"spiralcal/internal/session"
	"spiralcal/internal/store"
)

// SettingsStore persists view settings between runs.
type SettingsStore interface {
	PutJSON(ctx context.Context, key string, v any) error
}

// Server exposes one session over HTTP.
type Server struct {
	cfg      *config.Config
	sess     *session.Session
	settings SettingsStore
	refresh  func(context.Context) error
	mux      *http.ServeMux

	// Rendered SVG keyed by everything that affects the picture, so polling
	// clients do not redraw an unchanged spiral.
	svgMu    sync.RWMutex
	svgCache *svgCache
}

type svgCache struct {
	key  string
	body []byte
}

// Option configures optional collaborators.
type Option func(*Server)

func WithSettingsStore(st SettingsStore) Option {
	return func(s *Server) { s.settings = st }
}

// WithRefresh wires POST /api/refresh to fn.
func WithRefresh(fn func(context.Context) error) Option {
	return func(s *Server) { s.refresh = fn }
}

func NewServer(cfg *config.Config, sess *session.Session, opts ...Option) *Server {
	s := &Server{
		cfg:  cfg,
		sess: sess,
		mux:  http.NewServeMux(),
	}
	for _, o := range opts {
		o(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("PUT /api/events/{uid}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/events/{uid}", s.handleDeleteEvent)
	s.mux.HandleFunc("GET /api/export.ics", s.handleExport)
	s.mux.HandleFunc("POST /api/import", s.handleImport)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	s.mux.HandleFunc("GET /api/frame", s.handleFrame)
	s.mux.HandleFunc("GET /api/hit", s.handleHit)
	s.mux.HandleFunc("POST /api/rotate", s.handleRotate)
	s.mux.HandleFunc("GET /api/state", s.handleGetState)
	s.mux.HandleFunc("PATCH /api/state", s.handlePatchState)
	s.mux.HandleFunc("GET /api/segment", s.handleSegment)

	s.mux.HandleFunc("GET /spiral.svg", s.handleSVG)
	s.mux.HandleFunc("GET /preview.png", s.handlePNG)
	s.mux.HandleFunc("GET /spiral", s.handlePage)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/spiral", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="spiralcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) saveSettings(ctx context.Context) {
	if s.settings == nil {
		return
	}
	if err := s.settings.PutJSON(ctx, store.KeySettings, s.sess.Settings()); err != nil {
		appLog.Error("save settings failed", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
