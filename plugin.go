package pavlovia

import (
	"context"

	"github.com/minnojs/pavlovia/pkg/experiment"
	"github.com/minnojs/pavlovia/pkg/lifecycle"
	"github.com/minnojs/pavlovia/pkg/transport"
)

// Task types the host registers the plugin under.
const (
	LoggerType     = "csv"
	FinishTaskType = "postCsv"
)

// Logger receives the serialized results from the host.
type Logger struct {
	Type string
	send func(ctx context.Context, name string, serialized []byte) error
}

// Send hands the serialized results to the plugin. It blocks until they were
// saved and the session closed, and always returns nil: failures are logged.
func (l Logger) Send(ctx context.Context, name string, serialized []byte) error {
	if l.send == nil {
		return nil
	}
	return l.send(ctx, name, serialized)
}

// Task is a task the host schedules at the end of the experiment.
type Task struct {
	Type string
}

// Option configures a Plugin.
type Option func(*options)

type options struct {
	configURL string
	lifecycle []lifecycle.Option
}

// WithConfigURL sets the configuration document location; defaults to config.json
// relative to the page.
func WithConfigURL(configURL string) Option {
	return func(o *options) {
		o.configURL = configURL
	}
}

// WithLifecycle passes options through to the underlying orchestrator.
func WithLifecycle(opts ...lifecycle.Option) Option {
	return func(o *options) {
		o.lifecycle = append(o.lifecycle, opts...)
	}
}

// Plugin connects a host experiment runtime to the session service.
type Plugin struct {
	orchestrator *lifecycle.Orchestrator
	logger       Logger
	finish       Task
}

// New creates a plugin and starts initialization in the background: the
// configuration is loaded and a session opened while the experiment runs.
func New(ctx context.Context, sender transport.Sender, opts ...Option) *Plugin {
	o := &options{configURL: experiment.DefaultConfigURL}
	for _, opt := range opts {
		opt(o)
	}

	p := &Plugin{
		orchestrator: lifecycle.New(sender, o.lifecycle...),
		finish:       Task{Type: FinishTaskType},
	}
	p.logger = Logger{
		Type: LoggerType,
		send: func(ctx context.Context, _ string, serialized []byte) error {
			p.orchestrator.Finish(ctx, serialized)
			return nil
		},
	}

	go p.orchestrator.Init(context.WithoutCancel(ctx), o.configURL)
	return p
}

// Logger returns the results logger to register with the host.
func (p *Plugin) Logger() Logger {
	return p.logger
}

// FinishTask returns the task that ends the experiment.
func (p *Plugin) FinishTask() Task {
	return p.finish
}

// Unload is called when the host goes away before the results were sent.
func (p *Plugin) Unload(ctx context.Context, partial []byte) {
	p.orchestrator.Unload(ctx, partial)
}

// Wait blocks until the results were handled or ctx is done.
func (p *Plugin) Wait(ctx context.Context) error {
	select {
	case <-p.orchestrator.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Orchestrator exposes the underlying run, for hosts that inspect its outcome.
func (p *Plugin) Orchestrator() *lifecycle.Orchestrator {
	return p.orchestrator
}
