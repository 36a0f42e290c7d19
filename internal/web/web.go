package web

import (
	"crypto/subtle"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strings"

	"famcal/internal/bucket"
	"famcal/internal/config"
	appLog "famcal/internal/log"
	"famcal/internal/model"
	"famcal/internal/view"
)

// Server exposes the layout engine over HTTP: read-only layout queries plus
// the navigation and mode transitions of the view controller.
type Server struct {
	cfg  *config.Config
	ctrl *view.Controller
	mux  *http.ServeMux
}

// embeddedStatic contains the static UI shell served at /.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server around an existing controller.
func NewServer(cfg *config.Config, ctrl *view.Controller) *Server {
	s := &Server{
		cfg:  cfg,
		ctrl: ctrl,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
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

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays unauthenticated for probes.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="FamCal", charset="UTF-8"`)
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
	s.mux.HandleFunc("/api/layout", s.handleLayout)
	s.mux.HandleFunc("/api/day", s.handleDay)
	s.mux.HandleFunc("/api/month", s.handleMonth)
	s.mux.HandleFunc("/api/navigate", s.handleNavigate)
	s.mux.HandleFunc("/api/view", s.handleView)

	// Static UI shell; all non-/api/* paths fall back to this handler.
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// layoutResponse is the JSON response shape for /api/layout.
type layoutResponse struct {
	Mode    model.Mode          `json:"mode"`
	Anchor  model.Day           `json:"anchor"`
	Cells   []cellDTO           `json:"cells"`
	Entries []model.LayoutEntry `json:"entries"`
}

type cellDTO struct {
	Date    model.Day  `json:"date"`
	InMonth bool       `json:"in_month"`
	Events  []eventDTO `json:"events"`
}

type eventDTO struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	AllDay   bool   `json:"all_day"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

func toEventDTO(ev model.Event) eventDTO {
	return eventDTO{
		ID:       ev.ID,
		Title:    ev.Title,
		Category: ev.Category,
		AllDay:   ev.AllDay,
		Start:    ev.Start.Format("2006-01-02T15:04:05-07:00"),
		End:      ev.End.Format("2006-01-02T15:04:05-07:00"),
	}
}

// handleLayout returns the computed layout.
//
// GET /api/layout             — active view
// GET /api/layout?mode=week&date=2026-08-29 — explicit view
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var res view.Result
	if q.Get("mode") == "" && q.Get("date") == "" {
		res = s.ctrl.Layout()
	} else {
		v := bucket.View{Mode: s.ctrl.Mode(), Anchor: s.ctrl.Anchor()}
		if ms := q.Get("mode"); ms != "" {
			mode, err := model.ParseMode(ms)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			v.Mode = mode
		}
		if ds := q.Get("date"); ds != "" {
			day, err := model.ParseDay(ds)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			v.Anchor = day
		}
		var err error
		res, err = s.ctrl.LayoutFor(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	resp := layoutResponse{
		Mode:    res.View.Mode,
		Anchor:  res.View.Anchor,
		Cells:   make([]cellDTO, 0, len(res.Buckets)),
		Entries: res.Entries,
	}
	for _, b := range res.Buckets {
		cell := cellDTO{Date: b.Day, InMonth: b.InMonth, Events: make([]eventDTO, 0, len(b.Events))}
		for _, ev := range b.Events {
			cell.Events = append(cell.Events, toEventDTO(ev))
		}
		resp.Cells = append(resp.Cells, cell)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDay returns the normalized events for one local calendar date.
//
// GET /api/day?date=2026-08-29
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	day, err := model.ParseDay(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events := s.ctrl.EventsForDate(day)
	dtos := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, toEventDTO(ev))
	}

	writeJSON(w, http.StatusOK, struct {
		Date   model.Day  `json:"date"`
		Events []eventDTO `json:"events"`
	}{Date: day, Events: dtos})
}

// monthCellDTO is one month-grid cell with the overflow policy applied.
type monthCellDTO struct {
	Date    model.Day  `json:"date"`
	InMonth bool       `json:"in_month"`
	Events  []eventDTO `json:"events"`
	More    int        `json:"more,omitempty"`
}

// handleMonth returns the month grid for the active anchor, with each cell
// capped at the configured visible count plus a "+N more" remainder.
func (s *Server) handleMonth(w http.ResponseWriter, _ *http.Request) {
	cells := s.ctrl.MonthCells()
	dtos := make([]monthCellDTO, 0, len(cells))
	for _, c := range cells {
		dto := monthCellDTO{Date: c.Day, InMonth: c.InMonth, More: c.Hidden, Events: make([]eventDTO, 0, len(c.Visible))}
		for _, ev := range c.Visible {
			dto.Events = append(dto.Events, toEventDTO(ev))
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, struct {
		Anchor model.Day      `json:"anchor"`
		Cells  []monthCellDTO `json:"cells"`
	}{Anchor: s.ctrl.Anchor(), Cells: dtos})
}

// handleNavigate applies a navigation action to the controller.
//
// POST /api/navigate?action=today|prev|next
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	anchor, err := s.ctrl.Navigate(r.URL.Query().Get("action"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Anchor model.Day `json:"anchor"`
	}{Anchor: anchor})
}

// handleView switches the view mode.
//
// POST /api/view?mode=day|4day|week|month
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	mode, err := model.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ctrl.SetMode(mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Mode model.Mode `json:"mode"`
	}{Mode: mode})
}

// staticFileServer serves the embedded UI shell from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /api/* must never fall through to the static UI; a missing API
		// handler should 404, not return HTML.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
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
