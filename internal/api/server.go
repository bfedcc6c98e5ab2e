// Package api provides the HTTP surface of the control unit: the dashboard
// status and command endpoints, a websocket status stream, Prometheus
// metrics, and the static dashboard assets. The surface is trusted; there is
// no authentication.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/smartbuilding/climatectl/internal/config"
	"github.com/smartbuilding/climatectl/internal/kernel"
)

// Controller is the slice of the control kernel the HTTP layer drives. The
// server receives it at construction time; handlers never reach for shared
// process state.
type Controller interface {
	Snapshot() kernel.Snapshot
	SetMode(mode kernel.Mode) bool
	SetManualWindow(percentage float64, origin kernel.Origin) bool
	ResetAlarm() bool
}

// Server is the HTTP API server.
type Server struct {
	cfg     config.APIConfig
	ctrl    Controller
	router  chi.Router
	httpSrv *http.Server
}

// NewServer assembles the router. metricsHandler may be nil, in which case
// no /metrics route is mounted.
func NewServer(cfg config.APIConfig, ctrl Controller, metricsHandler http.Handler) *Server {
	s := &Server{cfg: cfg, ctrl: ctrl}
	s.router = s.buildRouter(metricsHandler)
	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) buildRouter(metricsHandler http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.AllowAll().Handler)

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimit.Enabled {
			r.Use(rateLimiter(s.cfg.RateLimit))
		}
		r.Get("/status", s.handleStatus)
		r.Post("/mode/manual", s.handleSetMode(kernel.ModeManual))
		r.Post("/mode/automatic", s.handleSetMode(kernel.ModeAutomatic))
		r.Post("/window/set", s.handleSetWindow)
		r.Post("/alarm/reset", s.handleAlarmReset)
		r.Get("/ws", s.handleStatusStream)
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	if s.cfg.StaticDir != "" {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, "index.html"))
		})
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir)))
		r.Handle("/static/*", fs)
	}

	return r
}

// Router exposes the assembled handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until Shutdown. A failure to bind is fatal for the process
// and is returned to the caller.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.ListenAddr()).Msg("HTTP API listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until the context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleSetMode(mode kernel.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ctrl.SetMode(mode) {
			writeJSON(w, http.StatusOK, message("Mode set to "+mode.String()))
			return
		}
		if s.ctrl.Snapshot().AlarmActive {
			// The dashboard shows the refusal inline rather than as an
			// error: the mode switch is legal, just locked out right now.
			writeJSON(w, http.StatusOK, message("Cannot change mode while alarm is active"))
			return
		}
		writeJSON(w, http.StatusBadRequest, message("Failed to set mode"))
	}
}

func (s *Server) handleSetWindow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Percentage *float64 `json:"percentage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Percentage == nil {
		writeJSON(w, http.StatusBadRequest, message("Missing 'percentage' in request body"))
		return
	}

	if s.ctrl.Snapshot().Mode != kernel.ModeManual {
		writeJSON(w, http.StatusForbidden, message("Cannot set window opening: system not in MANUAL mode"))
		return
	}

	if !s.ctrl.SetManualWindow(*req.Percentage, kernel.OriginOperator) {
		writeJSON(w, http.StatusBadRequest, message("Invalid percentage value"))
		return
	}
	writeJSON(w, http.StatusOK, messagef("Window opening set to %g%%", *req.Percentage))
}

func (s *Server) handleAlarmReset(w http.ResponseWriter, r *http.Request) {
	if s.ctrl.ResetAlarm() {
		writeJSON(w, http.StatusOK, message("Alarm reset successful"))
		return
	}
	writeJSON(w, http.StatusBadRequest, message("Failed to reset alarm (or system not in alarm state)"))
}
