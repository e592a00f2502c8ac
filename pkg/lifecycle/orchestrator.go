package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/minnojs/pavlovia/pkg/experiment"
	"github.com/minnojs/pavlovia/pkg/logger"
	"github.com/minnojs/pavlovia/pkg/results"
	"github.com/minnojs/pavlovia/pkg/session"
	"github.com/minnojs/pavlovia/pkg/transport"
)

// FallbackName names offered results when no configuration could be loaded.
const FallbackName = "results"

// run is the session context of a loaded configuration.
type run struct {
	cfg     *experiment.Config
	msg     experiment.ServerMessage
	manager *session.Manager
	router  *results.Router
}

// Orchestrator sequences one run: Init loads the configuration and opens the
// session, Finish saves the results and closes it. Neither ever returns an error;
// failures are logged and the host carries on.
type Orchestrator struct {
	sender     transport.Sender
	beacon     transport.Sender
	downloader results.Downloader
	clock      clockwork.Clock
	pageURL    string
	runID      string
	log        *slog.Logger

	initOnce   sync.Once
	finishOnce sync.Once
	ready      chan struct{}
	done       chan struct{}

	mu        sync.Mutex
	run       *run
	finishing bool
	unloading bool
	initErr   error
	finishErr error
}

// New creates an orchestrator issuing confirmed requests through sender.
func New(sender transport.Sender, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sender: sender,
		clock:  clockwork.NewRealClock(),
		runID:  uuid.NewString(),
		log:    logger.Discard(),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With(logger.Component("lifecycle"), logger.RunID(o.runID))
	return o
}

// RunID identifies this run in log records.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Ready is closed once Init has completed, successfully or not.
func (o *Orchestrator) Ready() <-chan struct{} {
	return o.ready
}

// Done is closed once Finish has completed.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Config returns the loaded configuration, or nil if none was loaded.
func (o *Orchestrator) Config() *experiment.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		return nil
	}
	return o.run.cfg
}

// SessionState reports the state of the run's session.
func (o *Orchestrator) SessionState() session.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		return session.StateUninitialized
	}
	return o.run.manager.State()
}

// Err returns the failures Init and Finish logged, joined.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return errors.Join(o.initErr, o.finishErr)
}

// Init loads the configuration from configURL and opens a session. It runs at
// most once; later calls return immediately. A failure leaves the run without
// session tracking and is only logged.
func (o *Orchestrator) Init(ctx context.Context, configURL string) {
	o.initOnce.Do(func() {
		defer close(o.ready)
		if err := o.init(ctx, configURL); err != nil {
			o.mu.Lock()
			o.initErr = err
			o.mu.Unlock()
			o.logFailure(ctx, "init failed", err)
		}
	})
}

func (o *Orchestrator) init(ctx context.Context, configURL string) error {
	loader := experiment.NewLoader(o.sender,
		experiment.WithPageURL(o.pageURL),
		experiment.WithLoaderLogger(o.log),
	)
	cfg, msg, err := loader.Load(ctx, configURL)
	if err != nil {
		return err
	}

	manager := session.NewManager(cfg, msg, o.sender,
		session.WithBeacon(o.beacon),
		session.WithLogger(o.log),
	)
	router := results.NewRouter(cfg, msg, manager, o.sender,
		results.WithBeacon(o.beacon),
		results.WithDownloader(o.downloader),
		results.WithClock(o.clock),
		results.WithLogger(o.log),
	)

	o.mu.Lock()
	o.run = &run{cfg: cfg, msg: msg, manager: manager, router: router}
	o.mu.Unlock()

	o.log.InfoContext(ctx, "configuration loaded",
		logger.Experiment(cfg.Experiment.FullPath),
		slog.Bool("pilot", msg.IsPilot()),
	)

	_, err = manager.Open(ctx)
	return err
}

// Finish waits for Init, saves payload and closes the session as completed.
// It runs at most once. When the upload fails the payload is offered for
// download instead and the session is still closed. After Unload the payload is
// only offered for download.
func (o *Orchestrator) Finish(ctx context.Context, payload []byte) {
	o.finishOnce.Do(func() {
		defer close(o.done)

		select {
		case <-o.ready:
		case <-ctx.Done():
			o.recordFinish(ctx, "finish aborted before init completed", ctx.Err())
			return
		}

		o.mu.Lock()
		o.finishing = true
		r := o.run
		unloading := o.unloading
		o.mu.Unlock()

		switch {
		case r == nil:
			o.offerWithoutConfig(ctx, payload)
		case unloading:
			o.offerAfterUnload(ctx, r, payload)
		default:
			o.finish(ctx, r, payload)
		}
	})
}

func (o *Orchestrator) finish(ctx context.Context, r *run, payload []byte) {
	res, err := r.router.Save(ctx, payload, false)
	if err != nil {
		o.recordFinish(ctx, "saving results failed", err)
		// A save that already failed to offer has nothing to fall back to.
		if !errors.Is(err, results.ErrNoDownloader) {
			res, err = r.router.Offer(ctx, r.router.Key(), payload)
			if err != nil {
				o.recordFinish(ctx, "offering results failed", err)
			}
		}
	}
	if res != nil {
		o.log.InfoContext(ctx, "results saved",
			logger.Origin(res.Origin),
			logger.ResultsKey(res.Key),
			slog.Bool("uploaded", res.Uploaded),
			slog.Bool("offered", res.Offered),
		)
	}

	if r.manager.State() != session.StateOpen {
		return
	}
	if _, err := r.manager.Close(ctx, true, false); err != nil {
		o.recordFinish(ctx, "closing session failed", err)
	}
}

// offerAfterUnload keeps the final payload when Unload already tore the session
// down as incomplete.
func (o *Orchestrator) offerAfterUnload(ctx context.Context, r *run, payload []byte) {
	if _, err := r.router.Offer(ctx, r.router.Key(), payload); err != nil {
		o.recordFinish(ctx, "offering results failed", err)
	}
}

func (o *Orchestrator) offerWithoutConfig(ctx context.Context, payload []byte) {
	cfg := &experiment.Config{Experiment: experiment.Experiment{Name: FallbackName}}
	router := results.NewRouter(cfg, nil, nil, o.sender,
		results.WithDownloader(o.downloader),
		results.WithClock(o.clock),
		results.WithLogger(o.log),
	)
	if _, err := router.Offer(ctx, router.Key(), payload); err != nil {
		o.recordFinish(ctx, "offering results failed", err)
	}
}

// Unload is the teardown hook for a host that is going away before Finish ran.
// If a session is open, the partial payload is sent through the beacon when the
// experiment keeps incomplete results, then the session is closed as incomplete
// without waiting for the server. Unload and Finish exclude each other: whichever
// claims the run first decides how the session is closed, and a Finish arriving
// after Unload only offers its payload for download.
func (o *Orchestrator) Unload(ctx context.Context, payload []byte) {
	o.mu.Lock()
	r := o.run
	if r == nil || o.finishing || o.unloading || r.manager.State() != session.StateOpen {
		o.mu.Unlock()
		return
	}
	o.unloading = true
	o.mu.Unlock()

	if r.cfg.Experiment.SaveIncompleteResults && len(payload) > 0 && r.router.Uploads() {
		if _, err := r.router.Save(ctx, payload, true); err != nil {
			o.logFailure(ctx, "saving incomplete results failed", err)
		}
	}
	if _, err := r.manager.Close(ctx, false, true); err != nil {
		o.logFailure(ctx, "closing session on unload failed", err)
	}
}

func (o *Orchestrator) recordFinish(ctx context.Context, msg string, err error) {
	o.mu.Lock()
	o.finishErr = errors.Join(o.finishErr, err)
	o.mu.Unlock()
	o.logFailure(ctx, msg, err)
}

func (o *Orchestrator) logFailure(ctx context.Context, msg string, err error) {
	attrs := []any{logger.Error(err)}
	if stageErr, ok := experiment.AsError(err); ok {
		attrs = append(attrs, logger.Origin(stageErr.Origin), logger.Context(stageErr.Context))
	}
	o.log.ErrorContext(ctx, msg, attrs...)
}
