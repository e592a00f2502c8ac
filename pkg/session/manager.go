package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/minnojs/pavlovia/pkg/experiment"
	"github.com/minnojs/pavlovia/pkg/logger"
	"github.com/minnojs/pavlovia/pkg/transport"
)

const (
	originOpen  = "open_session"
	originClose = "close_session"
)

// Info describes the session after an Open or Close call.
type Info struct {
	Token  string
	Status experiment.SessionStatus
	// Confirmed is false when the request was handed to the beacon and the
	// server answer was never seen.
	Confirmed bool
	// Response is the decoded server answer, if any.
	Response map[string]any
}

// Manager owns the session of a single run. It is safe for concurrent use;
// calls are serialized.
type Manager struct {
	mu     sync.Mutex
	state  State
	cfg    *experiment.Config
	msg    experiment.ServerMessage
	sender transport.Sender
	beacon transport.Sender
	log    *slog.Logger
}

// NewManager creates a manager for cfg. The manager records the opened session
// in cfg.Session and refreshes cfg with the experiment metadata the server returns.
func NewManager(cfg *experiment.Config, msg experiment.ServerMessage, sender transport.Sender, opts ...Option) *Manager {
	m := &Manager{
		state:  StateUninitialized,
		cfg:    cfg,
		msg:    msg,
		sender: sender,
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the current session, or nil before Open succeeded.
func (m *Manager) Session() *experiment.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.Session == nil {
		return nil
	}
	s := *m.cfg.Session
	return &s
}

type openResponse struct {
	Token      string `json:"token"`
	Status     string `json:"status"`
	Experiment *struct {
		Status2               string `json:"status2"`
		SaveFormat            string `json:"saveFormat"`
		SaveIncompleteResults bool   `json:"saveIncompleteResults"`
		License               string `json:"license"`
		RunMode               string `json:"runMode"`
	} `json:"experiment"`
}

// Open creates a session on the server. A pilot token from the server message is
// forwarded as the pilotToken form field. A response without token or experiment
// is a protocol error and leaves the manager uninitialized.
func (m *Manager) Open(ctx context.Context) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	to, err := next(m.state, eventOpen)
	if err != nil {
		return nil, err
	}

	errCtx := "when opening a session for experiment: " + m.cfg.Experiment.FullPath
	form := url.Values{}
	if m.msg.IsPilot() {
		form.Set("pilotToken", m.msg.PilotToken())
	}

	resp, err := m.sender.Send(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    m.cfg.SessionsURL(),
		Form:   form,
	})
	if err != nil {
		return nil, experiment.NetworkError(originOpen, errCtx, err)
	}
	if resp == nil {
		return nil, experiment.ProtocolError(originOpen, errCtx, "no response body", nil)
	}

	var raw map[string]any
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, experiment.ProtocolError(originOpen, errCtx, "response is not a JSON object", nil)
	}
	var body openResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, experiment.ProtocolError(originOpen, errCtx, err.Error(), raw)
	}
	if body.Token == "" {
		return nil, experiment.ProtocolError(originOpen, errCtx, "missing token", raw)
	}
	if body.Experiment == nil {
		return nil, experiment.ProtocolError(originOpen, errCtx, "missing experiment", raw)
	}

	m.cfg.Experiment.Status = body.Experiment.Status2
	m.cfg.Experiment.SaveFormat = body.Experiment.SaveFormat
	m.cfg.Experiment.SaveIncompleteResults = body.Experiment.SaveIncompleteResults
	m.cfg.Experiment.License = body.Experiment.License
	m.cfg.RunMode = body.Experiment.RunMode
	m.cfg.Session = &experiment.Session{Token: body.Token, Status: experiment.SessionOpen}
	m.state = to

	m.log.InfoContext(ctx, "session opened",
		logger.Origin(originOpen),
		logger.Experiment(m.cfg.Experiment.FullPath),
		logger.SessionToken(body.Token),
		slog.String("status", m.cfg.Experiment.Status),
		slog.String("run_mode", m.cfg.RunMode),
	)

	return &Info{
		Token:     body.Token,
		Status:    experiment.SessionOpen,
		Confirmed: true,
		Response:  raw,
	}, nil
}

// Close ends the session. With sync set and a beacon configured, the request is
// handed off without waiting and the session is marked closed immediately.
// Otherwise the session is marked closed only once the server confirmed it; on
// failure it stays open. Closing twice returns ErrSessionClosed without
// contacting the server.
func (m *Manager) Close(ctx context.Context, isCompleted, sync bool) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	to, err := next(m.state, eventClose)
	if err != nil {
		return nil, err
	}

	token := m.cfg.Session.Token
	errCtx := "when closing the session for experiment: " + m.cfg.Experiment.FullPath
	form := url.Values{"isCompleted": {strconv.FormatBool(isCompleted)}}

	if sync && m.beacon != nil {
		// Beacons can only POST, so the close goes through the /delete alias.
		_, err := m.beacon.Send(ctx, transport.Request{
			Method: http.MethodPost,
			URL:    m.cfg.SessionURL(token) + "/delete",
			Form:   form,
		})
		if err != nil {
			return nil, experiment.NetworkError(originClose, errCtx, err)
		}
		m.markClosed(to)
		m.log.InfoContext(ctx, "session close sent",
			logger.Origin(originClose),
			logger.SessionToken(token),
			slog.Bool("is_completed", isCompleted),
		)
		return &Info{Token: token, Status: experiment.SessionClosed}, nil
	}

	resp, err := m.sender.Send(ctx, transport.Request{
		Method: http.MethodDelete,
		URL:    m.cfg.SessionURL(token),
		Form:   form,
	})
	if err != nil {
		return nil, experiment.NetworkError(originClose, errCtx, err)
	}
	m.markClosed(to)

	info := &Info{Token: token, Status: experiment.SessionClosed, Confirmed: true}
	if resp != nil && len(resp.Body) > 0 {
		// The answer is informational; a non-JSON body does not undo the close.
		_ = json.Unmarshal(resp.Body, &info.Response)
	}

	m.log.InfoContext(ctx, "session closed",
		logger.Origin(originClose),
		logger.SessionToken(token),
		slog.Bool("is_completed", isCompleted),
	)
	return info, nil
}

func (m *Manager) markClosed(to State) {
	m.state = to
	m.cfg.Session.Status = experiment.SessionClosed
}
