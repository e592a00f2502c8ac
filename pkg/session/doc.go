// Package session opens and closes the recording session of a single run.
//
// A Manager moves through UNINITIALIZED, OPEN and CLOSED exactly once; there is
// no way back. Calls made out of order fail with a *TransitionError that wraps
// experiment.ErrNoSession, experiment.ErrSessionClosed or
// experiment.ErrSessionAlreadyOpen and never reach the network.
//
//	m := session.NewManager(cfg, msg, client, session.WithBeacon(beacon))
//	if _, err := m.Open(ctx); err != nil {
//		return err
//	}
//	// ... later, while the host is still alive:
//	_, err := m.Close(ctx, true, false)
//
// During teardown Close(ctx, false, true) hands the request to the beacon and
// marks the session closed without waiting for the server.
package session
