// Package admin serves the bridge's HTTP surface: session status,
// Prometheus metrics and a live WebSocket feed of recorded rows.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jsbsim-bridge/internal/session"
	"jsbsim-bridge/internal/wire"
)

// Source reports the live session.
type Source interface {
	Status() session.Status
	Latest() (wire.StateFrame, bool)
	Violations() uint64
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	SessionID  string           `json:"session_id"`
	Status     string           `json:"status"`
	Violations uint64           `json:"violations"`
	Latest     *wire.StateFrame `json:"latest"`
	Clients    int              `json:"ws_clients"`
}

type Server struct {
	src       Source
	sessionID string
	gatherer  prometheus.Gatherer
	hub       *Hub
	log       *slog.Logger
	router    chi.Router
}

// NewServer wires the routes. A nil gatherer serves the default registry
// and a nil hub gets a fresh one.
func NewServer(src Source, sessionID string, g prometheus.Gatherer, hub *Hub, log *slog.Logger) *Server {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub(log)
	}
	s := &Server{
		src:       src,
		sessionID: sessionID,
		gatherer:  g,
		hub:       hub,
		log:       log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.hub.ServeHTTP)
	s.router = r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the feed that recorded rows should be written to.
func (s *Server) Hub() *Hub { return s.hub }

// Start listens on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.hub.Close()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("admin listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		SessionID:  s.sessionID,
		Status:     s.src.Status().String(),
		Violations: s.src.Violations(),
		Clients:    s.hub.Clients(),
	}
	if latest, ok := s.src.Latest(); ok {
		resp.Latest = &latest
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
