// Package api exposes the monitor's state over HTTP. Live endpoints read
// straight from the engine; /db endpoints serve persisted history from the
// SQLite store and answer 503 when no store is configured.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"NetFlowScope/internal/config"
	"NetFlowScope/internal/engine"
	"NetFlowScope/internal/model"
	"NetFlowScope/internal/storage"
)

// Server is the HTTP API server.
type Server struct {
	eng     *engine.Engine
	store   *storage.SQLiteSink
	locator model.Locator
	httpSrv *http.Server
}

// NewServer builds the server and its routes. store and locator may be nil.
func NewServer(cfg config.APIConfig, eng *engine.Engine, store *storage.SQLiteSink, locator model.Locator) *Server {
	s := &Server{
		eng:     eng,
		store:   store,
		locator: locator,
	}

	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/status", s.statusHandler).Methods("GET")
	v1.HandleFunc("/sessions", s.sessionsHandler).Methods("GET")
	v1.HandleFunc("/ipstats", s.ipStatsHandler).Methods("GET")
	v1.HandleFunc("/top", s.topHandler).Methods("GET")
	v1.HandleFunc("/history", s.historyHandler).Methods("GET")
	v1.HandleFunc("/geo/{ip}", s.geoHandler).Methods("GET")
	v1.HandleFunc("/control/start", s.startHandler).Methods("POST")
	v1.HandleFunc("/control/stop", s.stopHandler).Methods("POST")
	v1.HandleFunc("/db/sessions", s.dbSessionsHandler).Methods("GET")
	v1.HandleFunc("/db/ipstats", s.dbIPStatsHandler).Methods("GET")
	v1.HandleFunc("/db/traffic", s.dbTrafficHandler).Methods("GET")

	s.httpSrv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return s
}

// Start runs the HTTP server in the background.
func (s *Server) Start() {
	go func() {
		log.Printf("API server starting on %s", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", s.httpSrv.Addr, err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		log.Printf("API server forced to shutdown: %v", err)
	}
	log.Println("API server exited.")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Summary())
}

func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions := s.eng.Sessions()
	limit := intParam(r, "limit", 0)
	if limit > 0 && limit < len(sessions) {
		sessions = sessions[:limit]
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) ipStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.IPStats())
}

func (s *Server) topHandler(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 10)
	orderBy := r.URL.Query().Get("order_by")
	writeJSON(w, http.StatusOK, s.eng.TopIPs(limit, orderBy))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.History())
}

func (s *Server) geoHandler(w http.ResponseWriter, r *http.Request) {
	if s.locator == nil {
		http.Error(w, "geo lookup not configured", http.StatusServiceUnavailable)
		return
	}
	addr := mux.Vars(r)["ip"]
	loc, err := s.locator.Lookup(addr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	s.eng.Start()
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.eng.Running()})
}

func (s *Server) stopHandler(w http.ResponseWriter, r *http.Request) {
	s.eng.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.eng.Running()})
}

func (s *Server) dbSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "persistent storage not configured", http.StatusServiceUnavailable)
		return
	}
	records, err := s.store.QuerySessions(
		intParam(r, "limit", 100),
		intParam(r, "offset", 0),
		r.URL.Query().Get("order_by"),
		r.URL.Query().Get("order") != "asc",
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) dbIPStatsHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "persistent storage not configured", http.StatusServiceUnavailable)
		return
	}
	records, err := s.store.QueryIPStats(
		intParam(r, "limit", 100),
		intParam(r, "offset", 0),
		r.URL.Query().Get("order_by"),
		r.URL.Query().Get("order") != "asc",
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) dbTrafficHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "persistent storage not configured", http.StatusServiceUnavailable)
		return
	}
	records, err := s.store.QueryTraffic(intParam(r, "hours", 24))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
