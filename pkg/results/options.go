package results

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/minnojs/pavlovia/pkg/transport"
)

// Option configures a Router.
type Option func(*Router)

// WithBeacon sets the fire-and-forget sender used when Save is called with sync.
func WithBeacon(beacon transport.Sender) Option {
	return func(r *Router) {
		r.beacon = beacon
	}
}

// WithDownloader sets where payloads are offered when they are not uploaded.
func WithDownloader(d Downloader) Option {
	return func(r *Router) {
		r.downloader = d
	}
}

// WithClock sets the clock used to timestamp results keys.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Router) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the logger for offers and uploads.
func WithLogger(log *slog.Logger) Option {
	return func(r *Router) {
		if log != nil {
			r.log = log
		}
	}
}
