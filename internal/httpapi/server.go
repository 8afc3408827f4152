package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
	apimw "github.com/hamed0406/sitemonitor/internal/httpapi/middleware"
	"github.com/hamed0406/sitemonitor/internal/repo"
	"github.com/hamed0406/sitemonitor/internal/scheduler"
	"github.com/hamed0406/sitemonitor/internal/uptime"
)

// Reports is the read side the API renders.
type Reports interface {
	ListSites(ctx context.Context) ([]domain.Site, error)
	StatusGrid(ctx context.Context, id domain.SiteID, windowDays int) (uptime.Grid, error)
	Overview(ctx context.Context, windowDays int) ([]uptime.SiteGrid, error)
}

// Monitor exposes the live state of the scheduler.
type Monitor interface {
	Active() []domain.SiteID
	Snapshot() []scheduler.SiteStatus
}

type Options struct {
	AllowedOrigins []string
	PublicRPM      int
	PublicBurst    int
	DefaultDays    int
}

type Server struct {
	Logger  *zap.Logger
	Reports Reports
	Monitor Monitor
	opts    Options
}

func NewServer(l *zap.Logger, reports Reports, monitor Monitor, opts Options) *Server {
	if opts.DefaultDays <= 0 {
		opts.DefaultDays = 90
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{Logger: l, Reports: reports, Monitor: monitor, opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(apimw.RequestLog(s.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(apimw.RateLimit(s.opts.PublicRPM, s.opts.PublicBurst))
		api.Get("/sites", s.handleListSites)
		api.Get("/sites/{id}/grid", s.handleSiteGrid)
		api.Get("/grid", s.handleOverview)
		api.Get("/monitor", s.handleMonitor)
	})

	return r
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.Reports.ListSites(r.Context())
	if err != nil {
		s.Logger.Warn("list_sites_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if sites == nil {
		sites = []domain.Site{}
	}
	writeJSON(w, http.StatusOK, sites)
}

type gridResponse struct {
	uptime.Grid
	Weeks [][]uptime.Day `json:"weeks,omitempty"`
}

func (s *Server) handleSiteGrid(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "bad site id")
		return
	}
	days, ok := s.windowDays(w, r)
	if !ok {
		return
	}

	g, err := s.Reports.StatusGrid(r.Context(), domain.SiteID(id), days)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "site not found")
		return
	case errors.Is(err, uptime.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.Logger.Warn("status_grid_error", zap.Int64("site_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "grid error")
		return
	}

	resp := gridResponse{Grid: g}
	if r.URL.Query().Get("weeks") == "1" {
		resp.Weeks = g.Weeks()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	days, ok := s.windowDays(w, r)
	if !ok {
		return
	}
	all, err := s.Reports.Overview(r.Context(), days)
	if err != nil {
		if errors.Is(err, uptime.ErrInvalidWindow) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.Logger.Warn("overview_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "grid error")
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active": len(s.Monitor.Active()),
		"sites":  s.Monitor.Snapshot(),
	})
}

// windowDays reads ?days=N, defaulting to the configured window.
func (s *Server) windowDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return s.opts.DefaultDays, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > uptime.MaxWindowDays {
		writeError(w, http.StatusBadRequest, "days must be between 0 and "+strconv.Itoa(uptime.MaxWindowDays))
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
