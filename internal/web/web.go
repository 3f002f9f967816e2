package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/cors"

	"planner/internal/config"
	"planner/internal/event"
	"planner/internal/ics"
	"planner/internal/invitee"
	appLog "planner/internal/log"
	"planner/internal/planner"
	"planner/internal/store"
	"planner/internal/timespan"
)

// Server provides the read-only HTTP API over the planner store.
type Server struct {
	cfg *config.Config
	svc *planner.Service
	loc *time.Location
	mux *http.ServeMux
}

// NewServer constructs a new Server. Date filters are parsed in loc.
func NewServer(cfg *config.Config, svc *planner.Service, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		cfg: cfg,
		svc: svc,
		loc: loc,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	if s.cfg != nil && len(s.cfg.CORSOrigins) > 0 {
		// Preflight requests are answered here, before auth.
		h = cors.New(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet},
			AllowedHeaders:   []string{"Authorization"},
			AllowCredentials: true,
		}).Handler(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials mean auth is off.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="planner", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
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
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleEvent)
	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleEvents lists events matching the query filter.
//
// GET /api/events?name=&before=&after=&finalized=1&unfinalized=1&invited=
//   - before/after: date expressions in the configured timezone
//   - invited:      participant id, or "name:<text>" for a free-form invitee
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, event.Reply(err))
		return
	}

	var resp eventsResponse
	err = s.svc.Read(func(st *store.Store) error {
		set := st.Events.Search(f)
		resp = eventsResponse{
			Events:   make([]eventDTO, 0, set.Len()),
			Total:    st.Events.Len(),
			Timezone: s.loc.String(),
		}
		for _, e := range set.Events() {
			resp.Events = append(resp.Events, newEventDTO(e, s.svc.Directory()))
		}
		return nil
	})
	if err != nil {
		appLog.Error("api events failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	appLog.Debug("api events request", "query", r.URL.RawQuery, "matched", len(resp.Events))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var dto eventDTO
	err := s.svc.Read(func(st *store.Store) error {
		e, err := st.Events.Lookup(r.PathValue("id"))
		if err != nil {
			return err
		}
		dto = newEventDTO(e, s.svc.Directory())
		return nil
	})
	var invalid *event.InvalidEventError
	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusNotFound, invalid.Reply())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to load event")
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// handleCalendar serves the same search as /api/events as an iCal feed.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseFilter(r)
	if err != nil {
		http.Error(w, event.Reply(err), http.StatusBadRequest)
		return
	}

	var body string
	err = s.svc.Read(func(st *store.Store) error {
		var err error
		body, err = ics.Export(st.Events.Search(f), s.cfg.CalendarName, s.loc, s.svc.Directory())
		return err
	})
	if err != nil {
		appLog.Error("calendar export failed", err)
		http.Error(w, "failed to export calendar", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) parseFilter(r *http.Request) (event.Filter, error) {
	q := r.URL.Query()
	f := event.Filter{
		Name:        q.Get("name"),
		Finalized:   parseBool(q.Get("finalized")),
		Unfinalized: parseBool(q.Get("unfinalized")),
	}

	for key, dst := range map[string]*time.Time{"before": &f.Before, "after": &f.After} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		ts := timespan.Parse(raw, s.loc)
		if !ts.Valid() {
			return f, &event.InvalidTimestampError{Input: raw}
		}
		*dst = ts.Start()
	}

	if who := strings.TrimSpace(q.Get("invited")); who != "" {
		if name, ok := strings.CutPrefix(who, "name:"); ok {
			f.Invited = invitee.Freeform(name)
		} else {
			f.Invited = invitee.Identified(who)
		}
	}
	return f, nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
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
