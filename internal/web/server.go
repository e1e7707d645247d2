// Package web provides an HTTP status server for the button-sensor daemon.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sweeney/button-sensor/internal/input"
	"github.com/sweeney/button-sensor/internal/status"
)

// Server serves the status page over HTTP and accepts sampling-mode
// switches.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker

	// onModeChange is invoked for POST /mode. It returns an error when the
	// requested mode cannot be applied (e.g. the source cannot push events).
	onModeChange func(mode string) error
}

// New creates a Server that reads state from the given tracker. onModeChange
// may be nil, in which case the mode endpoint reports the switch as
// unsupported.
func New(addr string, tracker *status.Tracker, onModeChange func(mode string) error) *Server {
	s := &Server{tracker: tracker, onModeChange: onModeChange}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/mode", s.handleMode)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
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
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleMode switches the sampling mode at runtime: POST /mode with a
// form value mode=poll|events.
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mode := r.FormValue("mode")
	if mode != "poll" && mode != "events" {
		http.Error(w, fmt.Sprintf("unknown mode %q (want poll or events)", mode), http.StatusBadRequest)
		return
	}

	if s.onModeChange == nil {
		http.Error(w, "mode switching not supported", http.StatusConflict)
		return
	}

	if err := s.onModeChange(mode); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, input.ErrEventsUnsupported) {
			code = http.StatusConflict
		}
		http.Error(w, err.Error(), code)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "mode: %s\n", mode)
}
