package session

import (
	"log/slog"

	"github.com/minnojs/pavlovia/pkg/transport"
)

// Option configures a Manager.
type Option func(*Manager)

// WithBeacon sets the fire-and-forget sender used by Close when sync is requested.
// Without a beacon every close is confirmed.
func WithBeacon(beacon transport.Sender) Option {
	return func(m *Manager) {
		m.beacon = beacon
	}
}

// WithLogger sets the logger for session events.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}
