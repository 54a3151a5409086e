// Package api exposes an engine over HTTP: health, statistics, a cache
// dump, manual ticks, lookups, inserts, and the Connect store service for
// remote engines.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/tailored-agentic-units/tablecache/engine"
	"github.com/tailored-agentic-units/tablecache/store/remote"
)

// Server routes admin requests to one engine.
type Server struct {
	engine *engine.Engine
	router *mux.Router
}

// NewServer creates a Server for e.
func NewServer(e *engine.Engine) *Server {
	s := &Server{
		engine: e,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

// Router returns the http.Handler to serve.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	path, handler := remote.NewHandler(s.engine.Store())
	s.router.PathPrefix(path).Handler(handler)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/stats", s.handleStats()).Methods(http.MethodGet)
	v1.HandleFunc("/cache", s.handleCache()).Methods(http.MethodGet)
	v1.HandleFunc("/tick", s.handleTick()).Methods(http.MethodPost)
	v1.HandleFunc("/records", s.handleFind()).Methods(http.MethodGet)
	v1.HandleFunc("/records", s.handleInsert()).Methods(http.MethodPost)
	v1.HandleFunc("/store/count", s.handleCount()).Methods(http.MethodGet)

	s.router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.engine.Stats())
	}
}

func (s *Server) handleCache() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, toRecords(s.engine.Cache().Records()))
	}
}

func (s *Server) handleTick() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.engine.Tick(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.engine.Count(r.Context())
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, engine.ErrNoCounter) {
				status = http.StatusNotImplemented
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": n})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
