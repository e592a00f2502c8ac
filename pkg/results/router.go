package results

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/jonboulle/clockwork"

	"github.com/minnojs/pavlovia/pkg/experiment"
	"github.com/minnojs/pavlovia/pkg/logger"
	"github.com/minnojs/pavlovia/pkg/transport"
)

// MIMEType is the content type of offered payloads.
const MIMEType = "text/csv"

const (
	originSave   = "save"
	originUpload = "upload_results"

	// OfferedMessage is reported when a payload was offered instead of uploaded.
	OfferedMessage = "offered the .csv file for download"
)

// Downloader offers a payload to the user as a local file and returns where it
// can be found.
type Downloader interface {
	Download(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// SessionSource reports the current session, if any.
type SessionSource interface {
	Session() *experiment.Session
}

// SaveResult describes what happened to a payload.
type SaveResult struct {
	Origin  string
	Context string
	Key     string
	// Uploaded is set when the payload was sent to the server. Confirmed tells
	// whether the server answer was awaited.
	Uploaded  bool
	Confirmed bool
	// Offered is set when the payload was handed to the Downloader instead.
	Offered  bool
	Location string
	Message  string
	Response map[string]any
}

// Router decides, per save, whether a payload is uploaded or offered for download.
type Router struct {
	cfg        *experiment.Config
	msg        experiment.ServerMessage
	sessions   SessionSource
	sender     transport.Sender
	beacon     transport.Sender
	downloader Downloader
	clock      clockwork.Clock
	log        *slog.Logger
}

// NewRouter creates a router for the run described by cfg and msg. sessions
// supplies the token uploads are addressed to.
func NewRouter(cfg *experiment.Config, msg experiment.ServerMessage, sessions SessionSource, sender transport.Sender, opts ...Option) *Router {
	r := &Router{
		cfg:      cfg,
		msg:      msg,
		sessions: sessions,
		sender:   sender,
		clock:    clockwork.NewRealClock(),
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key returns the results key for a save happening now.
func (r *Router) Key() string {
	return Key(r.cfg.Experiment.Name, r.clock.Now().Local())
}

// Uploads reports whether Save would upload rather than offer: the experiment is
// running and this is not a pilot run.
func (r *Router) Uploads() bool {
	return r.cfg.IsRunning() && !r.msg.IsPilot()
}

// Save routes payload. A running, non-pilot experiment gets it uploaded to the
// open session; anything else offers it for download, which is reported in the
// result and is not an error. With sync set and a beacon configured the upload
// is not awaited.
func (r *Router) Save(ctx context.Context, payload []byte, sync bool) (*SaveResult, error) {
	key := r.Key()
	if !r.Uploads() {
		return r.Offer(ctx, key, payload)
	}
	return r.upload(ctx, key, payload, sync)
}

// Offer hands payload to the Downloader under key.
func (r *Router) Offer(ctx context.Context, key string, payload []byte) (*SaveResult, error) {
	res := &SaveResult{
		Origin:  originSave,
		Context: "when saving results for experiment: " + r.cfg.Experiment.FullPath,
		Key:     key,
	}
	if r.downloader == nil {
		return nil, fmt.Errorf("%s %s: %w", res.Origin, res.Context, ErrNoDownloader)
	}

	location, err := r.downloader.Download(ctx, key, MIMEType, payload)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", res.Origin, res.Context, err)
	}

	res.Offered = true
	res.Location = location
	res.Message = OfferedMessage
	r.log.InfoContext(ctx, OfferedMessage,
		logger.Origin(originSave),
		logger.Experiment(r.cfg.Experiment.FullPath),
		logger.ResultsKey(key),
		slog.String("location", location),
	)
	return res, nil
}

func (r *Router) upload(ctx context.Context, key string, payload []byte, sync bool) (*SaveResult, error) {
	errCtx := "when uploading participant's results for experiment: " + r.cfg.Experiment.FullPath

	sess := r.sessions.Session()
	if sess == nil || sess.Status != experiment.SessionOpen {
		return nil, experiment.NetworkError(originUpload, errCtx, experiment.ErrNoSession)
	}

	sender := transport.Select(r.sender, r.beacon, sync)
	resp, err := sender.Send(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    r.cfg.ResultsURL(sess.Token),
		Form: url.Values{
			"key":   {key},
			"value": {string(payload)},
		},
	})
	if err != nil {
		return nil, experiment.NetworkError(originUpload, errCtx, err)
	}

	res := &SaveResult{
		Origin:    originUpload,
		Context:   errCtx,
		Key:       key,
		Uploaded:  true,
		Confirmed: resp != nil,
	}
	if resp != nil && len(resp.Body) > 0 {
		_ = json.Unmarshal(resp.Body, &res.Response)
		if msg, ok := res.Response["message"].(string); ok {
			res.Message = msg
		}
	}

	r.log.InfoContext(ctx, "results uploaded",
		logger.Origin(originUpload),
		logger.Experiment(r.cfg.Experiment.FullPath),
		logger.SessionToken(sess.Token),
		logger.ResultsKey(key),
		slog.Bool("confirmed", res.Confirmed),
		slog.Int("bytes", len(payload)),
	)
	return res, nil
}
