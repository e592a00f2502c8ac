package lifecycle

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/minnojs/pavlovia/pkg/results"
	"github.com/minnojs/pavlovia/pkg/transport"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBeacon sets the fire-and-forget sender used during Unload.
func WithBeacon(beacon transport.Sender) Option {
	return func(o *Orchestrator) {
		o.beacon = beacon
	}
}

// WithDownloader sets where results go when they are not uploaded.
func WithDownloader(d results.Downloader) Option {
	return func(o *Orchestrator) {
		o.downloader = d
	}
}

// WithPageURL sets the URL of the page hosting the experiment.
func WithPageURL(pageURL string) Option {
	return func(o *Orchestrator) {
		o.pageURL = pageURL
	}
}

// WithClock sets the clock the results key is taken from.
func WithClock(clock clockwork.Clock) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger; the run id and component are attached to it.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.runID = id
		}
	}
}
