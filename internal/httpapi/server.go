// Package httpapi exposes the REST + WebSocket surface used by the admin
// UI to inspect connections, manage trade groups/members, and receive a
// live change feed. It never mutates runtime_status or warning_codes
// directly — endpoints that change a group or member's intent or settings
// re-evaluate through the updater.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/tradecopy/relayd/internal/metrics"
	"github.com/tradecopy/relayd/internal/registry"
	"github.com/tradecopy/relayd/internal/store"
	"github.com/tradecopy/relayd/internal/updater"
	"github.com/tradecopy/relayd/pkg/logging"
)

// Server serves the /api REST routes and the /api/ws change feed.
type Server struct {
	registry *registry.Registry
	store    *store.Store
	updater  *updater.Updater
	hub      *Hub
	metrics  *metrics.Counters
	log      *logging.Logger

	corsOrigins []string
	httpServer  *http.Server
}

// Config controls listen behavior. CORS origins are fixed at construction
// time via New, not here, since the middleware is built once in Handler.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New returns a Server wired to its collaborators and an already-started
// Hub (the caller owns calling hub.Run in its own goroutine, the same way
// a PubServer is owned by its caller).
func New(reg *registry.Registry, st *store.Store, u *updater.Updater, hub *Hub, m *metrics.Counters, corsOrigins []string) *Server {
	return &Server{
		registry:    reg,
		store:       st,
		updater:     u,
		hub:         hub,
		metrics:     m,
		log:         logging.GetDefault().Component("httpapi"),
		corsOrigins: corsOrigins,
	}
}

// Handler builds the full route mux wrapped in gzip and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/connections", s.handleListConnections)
	mux.HandleFunc("GET /api/connections/{id}", s.handleGetConnection)

	mux.HandleFunc("GET /api/trade-groups", s.handleListTradeGroups)
	mux.HandleFunc("POST /api/trade-groups", s.handleCreateTradeGroup)
	mux.HandleFunc("GET /api/trade-groups/{id}", s.handleGetTradeGroup)
	mux.HandleFunc("PUT /api/trade-groups/{id}", s.handleUpdateTradeGroup)
	mux.HandleFunc("DELETE /api/trade-groups/{id}", s.handleDeleteTradeGroup)

	mux.HandleFunc("GET /api/trade-groups/{id}/members", s.handleListMembers)
	mux.HandleFunc("POST /api/trade-groups/{id}/members", s.handleCreateMember)
	mux.HandleFunc("PUT /api/trade-groups/{id}/members/{slave}", s.handleUpdateMember)
	mux.HandleFunc("POST /api/trade-groups/{id}/members/{slave}/toggle", s.handleToggleMember)
	mux.HandleFunc("DELETE /api/trade-groups/{id}/members/{slave}", s.handleDeleteMember)

	mux.HandleFunc("GET /api/ws", s.handleWS)

	return corsMiddleware(s.corsOrigins)(gzhttp.GzipHandler(mux))
}

// Start binds addr, returning any listen error, then serves in a
// background goroutine.
func (s *Server) Start(cfg Config) error {
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server error", "err", err)
		}
	}()
	s.log.Info("http server listening", "addr", cfg.Addr)
	return nil
}

// Stop gracefully shuts down the HTTP listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	allowAll := len(allowed) == 0
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" && set[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(s.metrics.Render()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func storeErrStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
