package experiment

import (
	"net/url"
	"strings"
)

// StatusRunning is the experiment status under which results are recorded.
const StatusRunning = "RUNNING"

// SessionStatus is the server-side state of a recording session.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

// Config is the run configuration. Fields beyond name, fullpath and URL are
// optional in the document and are refreshed from the server when a session opens.
type Config struct {
	Experiment Experiment `json:"experiment"`
	Pavlovia   Server     `json:"pavlovia"`
	RunMode    string     `json:"runMode,omitempty"`

	// Session is set by the session manager once a session is opened.
	// It is only ever mutated by that manager.
	Session *Session `json:"-"`
}

type Experiment struct {
	Name                  string `json:"name"`
	FullPath              string `json:"fullpath"`
	Status                string `json:"status,omitempty"`
	SaveFormat            string `json:"saveFormat,omitempty"`
	SaveIncompleteResults bool   `json:"saveIncompleteResults,omitempty"`
	License               string `json:"license,omitempty"`
}

type Server struct {
	URL string `json:"URL"`
}

// Session is a server-tracked recording context.
type Session struct {
	Token  string
	Status SessionStatus
}

// IsRunning reports whether the experiment accepts results.
func (c *Config) IsRunning() bool {
	return c.Experiment.Status == StatusRunning
}

// SessionsURL is the collection endpoint sessions are opened against.
func (c *Config) SessionsURL() string {
	return strings.TrimRight(c.Pavlovia.URL, "/") +
		"/api/v2/experiments/" + EncodeURIComponent(c.Experiment.FullPath) + "/sessions"
}

// SessionURL addresses a single session.
func (c *Config) SessionURL(token string) string {
	return c.SessionsURL() + "/" + token
}

// ResultsURL is where a session's results are uploaded.
func (c *Config) ResultsURL(token string) string {
	return c.SessionURL(token) + "/results"
}

// EncodeURIComponent escapes s the way browsers escape a URI component:
// everything except letters, digits and -_.!~*'() is percent-encoded.
func EncodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return componentReplacer.Replace(escaped)
}

var componentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)
