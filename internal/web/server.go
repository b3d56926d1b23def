// Package web provides the HTTP surface of the attention-sensor daemon: a
// status page, a JSON API and a live sample stream.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/sweeney/attention-sensor/internal/attention"
	"github.com/sweeney/attention-sensor/internal/recommend"
	"github.com/sweeney/attention-sensor/internal/status"
	"github.com/sweeney/attention-sensor/internal/store"
)

// Recommender produces suggestions for POST /api/recommendations.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (recommend.Result, error)
}

// Deps are the components the server reads from and drives.
type Deps struct {
	Tracker     *status.Tracker
	Simulator   *attention.Simulator
	Store       *store.Store
	Recommender Recommender
	Logger      *zap.Logger

	// Target is bound when a start request names none.
	Target *attention.Rect
}

// Server serves the status page and API over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	sim        *attention.Simulator
	store      *store.Store
	recs       Recommender
	target     *attention.Rect
	logger     *zap.Logger
}

// New creates a Server listening on addr.
func New(addr string, d Deps) *Server {
	s := &Server{
		tracker: d.Tracker,
		sim:     d.Simulator,
		store:   d.Store,
		recs:    d.Recommender,
		target:  d.Target,
		logger:  d.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("GET /api/sample", s.handleSample)
	mux.HandleFunc("POST /api/tracking/start", s.handleStart)
	mux.HandleFunc("POST /api/tracking/stop", s.handleStop)
	mux.HandleFunc("POST /api/recommendations", s.handleRecommend)
	mux.HandleFunc("GET /api/events", s.handleListEvents)
	mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	mux.HandleFunc("GET /api/events/{id}", s.handleGetEvent)
	mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	mux.HandleFunc("GET /ws", s.handleStream)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.logger.Warn("render status page failed", zap.Error(err))
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

type errorJSON struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorJSON{Error: msg})
}
