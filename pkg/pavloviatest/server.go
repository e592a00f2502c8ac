package pavloviatest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Route identifies one endpoint of the fake service.
type Route string

const (
	RouteConfig      Route = "config"
	RouteOpen        Route = "open"
	RouteUpload      Route = "upload"
	RouteClose       Route = "close"
	RouteBeaconClose Route = "beacon_close"
)

// Call is one recorded request.
type Call struct {
	Route     Route
	Method    string
	FullPath  string
	Token     string
	Form      url.Values
	UserAgent string
}

// Server is a fake session API backed by httptest.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	calls    []Call
	sessions map[string]string
	notify   chan struct{}

	name                  string
	fullpath              string
	status                string
	saveIncompleteResults bool
	configDoc             []byte
	openBody              any
	failures              map[Route]int
}

// Option configures a Server.
type Option func(*Server)

// WithExperiment sets the experiment name and full path of the default configuration.
func WithExperiment(name, fullpath string) Option {
	return func(s *Server) {
		s.name = name
		s.fullpath = fullpath
	}
}

// WithExperimentStatus sets the status2 reported when a session opens.
func WithExperimentStatus(status string) Option {
	return func(s *Server) {
		s.status = status
	}
}

// WithSaveIncompleteResults sets saveIncompleteResults in open responses.
func WithSaveIncompleteResults(v bool) Option {
	return func(s *Server) {
		s.saveIncompleteResults = v
	}
}

// WithConfigDocument serves raw as the configuration document instead of the default.
func WithConfigDocument(raw []byte) Option {
	return func(s *Server) {
		s.configDoc = raw
	}
}

// WithOpenResponse replaces the JSON body returned when a session opens.
func WithOpenResponse(body any) Option {
	return func(s *Server) {
		s.openBody = body
	}
}

// WithFailure makes route answer with the given HTTP status.
func WithFailure(route Route, status int) Option {
	return func(s *Server) {
		s.failures[route] = status
	}
}

// New starts a fake server. Callers must Close it.
func New(opts ...Option) *Server {
	s := &Server{
		sessions: make(map[string]string),
		notify:   make(chan struct{}, 64),
		name:     "exp1",
		fullpath: "u/exp1",
		status:   "RUNNING",
		failures: make(map[Route]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/config.json", s.handleConfig)
	r.Route("/api/v2/experiments/{fullpath}/sessions", func(r chi.Router) {
		r.Post("/", s.handleOpen)
		r.Post("/{token}/results", s.handleUpload)
		r.Delete("/{token}", s.handleClose)
		r.Post("/{token}/delete", s.handleBeaconClose)
	})

	s.Server = httptest.NewServer(r)
	return s
}

// ConfigURL is the address of the configuration document.
func (s *Server) ConfigURL() string {
	return s.URL + "/config.json"
}

// PageURL builds an experiment page URL carrying the given query.
func (s *Server) PageURL(query string) string {
	u := s.URL + "/index.html"
	if query != "" {
		u += "?" + query
	}
	return u
}

// Calls returns the recorded requests, optionally filtered by route.
func (s *Server) Calls(routes ...Route) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(routes) == 0 {
		return append([]Call(nil), s.calls...)
	}
	var out []Call
	for _, c := range s.calls {
		for _, r := range routes {
			if c.Route == r {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// SessionStatus reports the server-side status of a session token.
func (s *Server) SessionStatus(token string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[token]
}

// WaitFor blocks until route has been called n times or the timeout elapses.
func (s *Server) WaitFor(route Route, n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if len(s.Calls(route)) >= n {
			return true
		}
		select {
		case <-s.notify:
		case <-deadline:
			return len(s.Calls(route)) >= n
		}
	}
}

func (s *Server) record(route Route, r *http.Request) Call {
	call := Call{
		Route:     route,
		Method:    r.Method,
		FullPath:  pathParam(r, "fullpath"),
		Token:     chi.URLParam(r, "token"),
		Form:      readForm(r),
		UserAgent: r.UserAgent(),
	}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return call
}

func (s *Server) failed(route Route, w http.ResponseWriter) bool {
	s.mu.Lock()
	status, ok := s.failures[route]
	s.mu.Unlock()
	if !ok {
		return false
	}
	http.Error(w, fmt.Sprintf("%s failed", route), status)
	return true
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.record(RouteConfig, r)
	if s.failed(RouteConfig, w) {
		return
	}
	if s.configDoc != nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(s.configDoc)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"experiment": map[string]any{
			"name":     s.name,
			"fullpath": s.fullpath,
		},
		"pavlovia": map[string]any{
			"URL": s.URL,
		},
	})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	call := s.record(RouteOpen, r)
	if s.failed(RouteOpen, w) {
		return
	}
	if call.FullPath != s.fullpath {
		http.Error(w, "unknown experiment", http.StatusNotFound)
		return
	}
	if s.openBody != nil {
		writeJSON(w, http.StatusOK, s.openBody)
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = "OPEN"
	s.mu.Unlock()

	runMode := "RUN"
	if call.Form.Get("pilotToken") != "" {
		runMode = "PILOT"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":  token,
		"status": "OPEN",
		"experiment": map[string]any{
			"status2":               s.status,
			"saveFormat":            "CSV",
			"saveIncompleteResults": s.saveIncompleteResults,
			"license":               "CC-BY-4.0",
			"runMode":               runMode,
		},
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	call := s.record(RouteUpload, r)
	if s.failed(RouteUpload, w) {
		return
	}
	if !s.isOpen(call.Token) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "results uploaded", "key": call.Form.Get("key")})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	call := s.record(RouteClose, r)
	if s.failed(RouteClose, w) {
		return
	}
	s.closeSession(w, call)
}

func (s *Server) handleBeaconClose(w http.ResponseWriter, r *http.Request) {
	call := s.record(RouteBeaconClose, r)
	if s.failed(RouteBeaconClose, w) {
		return
	}
	s.closeSession(w, call)
}

func (s *Server) closeSession(w http.ResponseWriter, call Call) {
	if !s.isOpen(call.Token) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	s.mu.Lock()
	s.sessions[call.Token] = "CLOSED"
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"token":       call.Token,
		"status":      "CLOSED",
		"isCompleted": call.Form.Get("isCompleted") == "true",
	})
}

func (s *Server) isOpen(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[token] == "OPEN"
}

// pathParam returns the decoded value of a route parameter that may contain
// escaped slashes.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// readForm decodes a form body for any method; net/http only does so for POST, PUT and PATCH.
func readForm(r *http.Request) url.Values {
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		return url.Values{}
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return url.Values{}
	}
	return values
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
