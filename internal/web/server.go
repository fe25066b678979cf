// Package web provides an HTTP status and control server for the tank-pump daemon.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"mime"
	"net"
	"net/http"
	"strings"

	"github.com/sweeney/tank-pump/internal/logic"
	"github.com/sweeney/tank-pump/internal/mqtt"
	"github.com/sweeney/tank-pump/internal/status"
)

// maxCommandBytes bounds the body of an override request.
const maxCommandBytes = 4 << 10

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	overrides  func(logic.Override)
}

// New creates a Server that reads state from the given tracker. Override
// requests are handed to overrides; when it is nil the /override endpoint
// is not registered.
func New(addr string, tracker *status.Tracker, overrides func(logic.Override)) *Server {
	s := &Server{tracker: tracker, overrides: overrides}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	if overrides != nil {
		mux.HandleFunc("/override", s.handleOverride)
	}

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
	if err := renderHTML(w, snap, s.overrides != nil); err != nil {
		log.Printf("render status page: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// overrideResponse echoes an accepted directive.
type overrideResponse struct {
	Override bool   `json:"override"`
	State    string `json:"state"`
}

// handleOverride accepts the same JSON body as the MQTT command topic, or an
// HTML form with "override" and "state" fields. Form posts are redirected
// back to the status page.
func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	isJSON := false
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		isJSON = err == nil && mt == "application/json"
	}

	var o logic.Override
	if isJSON {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
		if err != nil {
			http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
			return
		}
		var ok bool
		o, ok, err = mqtt.ParseCommand(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !ok {
			http.Error(w, `missing "override"`, http.StatusBadRequest)
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxCommandBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "parse form: "+err.Error(), http.StatusBadRequest)
			return
		}
		active, ok := formBool(r.PostForm.Get("override"))
		if !ok {
			http.Error(w, `invalid "override"`, http.StatusBadRequest)
			return
		}
		o = logic.Override{
			Active:  active,
			Desired: r.PostForm.Get("state") == string(logic.StateOn),
		}
	}

	log.Printf("HTTP override from %s: active=%v state=%s", r.RemoteAddr, o.Active, o.DesiredState())
	s.overrides(o)

	if !isJSON {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(overrideResponse{Override: o.Active, State: string(o.DesiredState())})
}

func formBool(v string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true, true
	case "0", "false", "off", "no":
		return false, true
	}
	return false, false
}
