package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"yearcal/internal/config"
	"yearcal/internal/layout"
	appLog "yearcal/internal/log"
	"yearcal/internal/refresh"
)

// Snapshots is what the server needs from the refresher.
type Snapshots interface {
	Snapshot() refresh.Snapshot
	Refresh(ctx context.Context) (refresh.Snapshot, error)
}

// layoutKey identifies a memoized layout. The snapshot generation stands in
// for the event set: a new load always yields a new generation.
type layoutKey struct {
	generation uint64
	year       int
	maxLanes   int
}

// Server provides the HTTP API and the HTML year view.
type Server struct {
	cfg   *config.Config
	loc   *time.Location
	snaps Snapshots
	mux   *http.ServeMux
	now   func() time.Time

	layouts *lru.Cache[layoutKey, *layout.Result]
}

// NewServer constructs a Server. loc is the zone events are laid out in.
func NewServer(cfg *config.Config, loc *time.Location, snaps Snapshots) (*Server, error) {
	cache, err := lru.New[layoutKey, *layout.Result](cfg.LayoutCacheSize)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		loc:     loc,
		snaps:   snaps,
		mux:     http.NewServeMux(),
		now:     time.Now,
		layouts: cache,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the root handler, wrapped in Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/layout", s.handleLayout)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /year", s.handleYearView)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/year", http.StatusFound)
	})
}

// Serve runs the server on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	appLog.Info("http server listening", "addr", ln.Addr().String(), "basic_auth", s.basicAuthEnabled())

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
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth rather than locking everyone out.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects every path except /health.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="yearcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snaps.Refresh(r.Context())
	if err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generation": snap.Generation,
		"events":     len(snap.Events),
		"loaded_at":  snap.LoadedAt,
	})
}

// layoutFor returns the memoized layout of the current snapshot.
func (s *Server) layoutFor(year, maxLanes int) (*layout.Result, refresh.Snapshot) {
	snap := s.snaps.Snapshot()
	key := layoutKey{generation: snap.Generation, year: year, maxLanes: maxLanes}
	if res, ok := s.layouts.Get(key); ok {
		return res, snap
	}

	res := layout.Compute(snap.Events, year, layout.Options{MaxLanes: maxLanes, Location: s.loc})
	for _, d := range res.Diagnostics {
		appLog.Warn("event excluded from layout", "event_id", d.EventID, "reason", d.Err.Error())
	}
	s.layouts.Add(key, res)
	appLog.Debug("layout computed", "year", year, "max_lanes", maxLanes, "generation", snap.Generation, "weeks", len(res.Weeks))
	return res, snap
}

// layoutParams reads ?year= and ?max_lanes=, falling back to config.
func (s *Server) layoutParams(r *http.Request) (year, maxLanes int, err error) {
	q := r.URL.Query()
	year = s.cfg.EffectiveYear(s.now(), s.loc)
	if v := q.Get("year"); v != "" {
		year, err = strconv.Atoi(v)
		if err != nil || year < 1 || year > 9999 {
			return 0, 0, errors.New("year must be between 1 and 9999")
		}
	}
	maxLanes = s.cfg.MaxLanes
	if v := q.Get("max_lanes"); v != "" {
		maxLanes, err = strconv.Atoi(v)
		if err != nil || maxLanes < 1 || maxLanes > 64 {
			return 0, 0, errors.New("max_lanes must be between 1 and 64")
		}
	}
	return year, maxLanes, nil
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
