package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	apimw "github.com/hamed0406/sitewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sitewatch/internal/monitor"
	"github.com/hamed0406/sitewatch/internal/repo"
)

// Runner triggers one evaluation cycle.
type Runner interface {
	Handle(ctx context.Context) (monitor.Response, error)
}

type Server struct {
	Logger  *zap.Logger
	Target  string
	Runner  Runner
	Store   repo.StatusStore
	Metrics http.Handler
}

func NewServer(l *zap.Logger, target string, runner Runner, store repo.StatusStore, metrics http.Handler) *Server {
	return &Server{Logger: l, Target: target, Runner: runner, Store: store, Metrics: metrics}
}

// Router wires the routes. Rate limits are requests per minute per client IP.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(corsHandler(allowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(pubRPM, pubBurst))
			r.Use(apimw.RequireAny(keys))
			r.Get("/status", s.handleStatus)
			r.Get("/history", s.handleHistory)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(admRPM, admBurst))
			r.Use(apimw.RequireAdmin(keys))
			r.Post("/check", s.handleCheck)
		})
	})
	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	})
}

type statusResponse struct {
	Target string `json:"target"`
	repo.Snapshot
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Store.Snapshot(r.Context())
	if err != nil {
		s.Logger.Error("status_read_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "state unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target":     s.Target,
		"status":     snap.Status.Status,
		"updated_at": snap.Status.UpdatedAt,
	})
}

// handleHistory returns the newest ?limit= entries (all by default), oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = n
	}
	snap, err := s.Store.Snapshot(r.Context())
	if err != nil {
		s.Logger.Error("history_read_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "state unavailable")
		return
	}
	if limit > 0 && len(snap.History) > limit {
		snap.History = snap.History[len(snap.History)-limit:]
	}
	writeJSON(w, http.StatusOK, statusResponse{Target: s.Target, Snapshot: *snap})
}

// handleCheck runs a cycle. A DOWN target is a 200; only a failure of the
// monitor itself is a 500.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Runner.Handle(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  err.Error(),
			"run_id": resp.RunID,
		})
		return
	}
	code := resp.StatusCode
	if code == 0 {
		code = http.StatusOK
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
