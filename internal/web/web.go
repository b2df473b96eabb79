// Package web serves the timeline UI and JSON API.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/samber/lo"

	"babyriver/internal/config"
	"babyriver/internal/curve"
	appLog "babyriver/internal/log"
	"babyriver/internal/model"
	"babyriver/internal/place"
	"babyriver/internal/render"
	"babyriver/internal/timeline"
)

// svgCacheTTL bounds how often the SVG document is rebuilt for page
// requests. The engine memoizes the snapshot itself; this only spares the
// string assembly.
const svgCacheTTL = 2 * time.Second

// RefreshFunc re-fetches all feed sources and pushes the merged events
// into the engine. Wired by the host process.
type RefreshFunc func(ctx context.Context) error

// Server provides the HTTP surface: health, timeline API, the SVG page
// and the last captured snapshot image.
type Server struct {
	cfg          *config.Config
	tl           *timeline.Timeline
	refresh      RefreshFunc
	snapshotPath string
	mux          *http.ServeMux

	svgMu    sync.RWMutex
	svgCache *svgCache
}

type svgCache struct {
	body      string
	updatedAt time.Time
}

// NewServer constructs a Server around an engine. snapshotPath is where
// the capture pipeline writes the PNG served at /snapshot.png; refresh may
// be nil, in which case POST /api/refresh returns 503.
func NewServer(cfg *config.Config, tl *timeline.Timeline, refresh RefreshFunc, snapshotPath string) *Server {
	s := &Server{
		cfg:          cfg,
		tl:           tl,
		refresh:      refresh,
		snapshotPath: snapshotPath,
		mux:          http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the server's http.Handler, wrapped in basic auth when
// credentials are configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="babyriver", charset="UTF-8"`)
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

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/timeline", s.handleTimeline)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
	s.mux.HandleFunc("/timeline", s.handlePage)
	s.mux.HandleFunc("/timeline.svg", s.handleSVG)
	s.mux.HandleFunc("/snapshot.png", s.handleSnapshot)
	s.mux.HandleFunc("/", s.handleIndex)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/timeline", http.StatusFound)
}

// timelineResponse is the JSON response shape for /api/timeline.
type timelineResponse struct {
	Days        []dayDTO       `json:"days"`
	PathD       string         `json:"path_d"`
	TotalHeight float64        `json:"total_height"`
	Placements  []placementDTO `json:"placements"`
	SampleReady bool           `json:"sample_ready"`
}

type dayDTO struct {
	Date        string  `json:"date"`
	Index       int     `json:"index"`
	StartOffset float64 `json:"start_offset"`
}

type placementDTO struct {
	EventID string  `json:"event_id"`
	Type    string  `json:"type"`
	Kind    string  `json:"kind"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	EndX    float64 `json:"end_x,omitempty"`
	EndY    float64 `json:"end_y,omitempty"`
	PathD   string  `json:"path_d,omitempty"`
}

// handleTimeline returns the current snapshot as JSON.
//
// GET /api/timeline?scroll_top=1234&viewport=800
//
// The optional scroll parameters feed the day-window virtualization, so a
// browser driving the SVG view extends the window by scrolling.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("scroll_top") {
		scrollTop := parseFloatDefault(q.Get("scroll_top"), 0)
		viewport := parseFloatDefault(q.Get("viewport"), 800)
		s.tl.Scroll(scrollTop, viewport)
	}

	snap := s.tl.Snapshot()
	writeJSON(w, http.StatusOK, snapshotDTO(snap))
}

func snapshotDTO(snap timeline.Snapshot) timelineResponse {
	return timelineResponse{
		Days: lo.Map(snap.Days, func(d model.Day, _ int) dayDTO {
			return dayDTO{
				Date:        d.Date.Format("2006-01-02"),
				Index:       d.Index,
				StartOffset: d.StartOffset,
			}
		}),
		PathD:       snap.PathD,
		TotalHeight: snap.TotalHeight,
		Placements: lo.Map(snap.Placements, func(p place.Placement, _ int) placementDTO {
			dto := placementDTO{
				EventID: p.EventID,
				Type:    string(p.Type),
				Kind:    kindString(p.Kind),
				X:       p.X,
				Y:       p.Y,
			}
			if p.Kind == place.Duration {
				dto.EndX = p.EndX
				dto.EndY = p.EndY
				dto.PathD = p.Connector.D()
			}
			return dto
		}),
		SampleReady: snap.SampleReady,
	}
}

func kindString(k place.Kind) string {
	if k == place.Duration {
		return "duration"
	}
	return "point"
}

// handleEvents returns the engine's current event list.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	type eventsResponse struct {
		Events []model.Event `json:"events"`
	}
	events := s.tl.Events()
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

// handleRefresh triggers an immediate feed refresh.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if s.refresh == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh not configured")
		return
	}
	if err := s.refresh(r.Context()); err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	s.invalidateSVG()
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "refreshed"})
}

// handleSVG serves the rendered timeline as a standalone SVG document.
func (s *Server) handleSVG(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml; charset=utf-8")
	_, _ = fmt.Fprint(w, s.renderSVG())
}

// handlePage serves the timeline wrapped in a minimal HTML shell. The
// capture pipeline loads this page and waits for data-ready on the SVG
// root before screenshotting.
func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>babyriver</title>
<style>body { margin: 0; background: #fafafa; }</style></head>
<body>
%s</body>
</html>
`, s.renderSVG())
}

func (s *Server) renderSVG() string {
	now := time.Now()

	s.svgMu.RLock()
	c := s.svgCache
	s.svgMu.RUnlock()
	if c != nil && now.Sub(c.updatedAt) < svgCacheTTL {
		return c.body
	}

	snap := s.tl.Snapshot()
	body := render.SVG(snap, s.geometry(), render.Options{})

	s.svgMu.Lock()
	s.svgCache = &svgCache{body: body, updatedAt: time.Now()}
	s.svgMu.Unlock()
	return body
}

func (s *Server) invalidateSVG() {
	s.svgMu.Lock()
	s.svgCache = nil
	s.svgMu.Unlock()
}

func (s *Server) geometry() curve.Geometry {
	return s.cfg.Geometry()
}

// handleSnapshot serves the last captured PNG from disk. ServeFile
// returns 404 when no capture has run yet.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.snapshotPath)
}

func parseFloatDefault(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
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
