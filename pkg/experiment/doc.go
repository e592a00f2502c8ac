// Package experiment holds the data model shared by every stage of the session
// client and loads it from the remote configuration document.
//
// A Config is created once per run by Loader.Load and lives for the lifetime of the
// run. The document must contain experiment.name, experiment.fullpath and
// pavlovia.URL; anything else is optional and is later completed by the server
// when a session is opened.
//
//	loader := experiment.NewLoader(client, experiment.WithPageURL(pageURL))
//	cfg, msg, err := loader.Load(ctx, "config.json")
//	if err != nil {
//		// errors.Is(err, experiment.ErrConfiguration) is always true here
//	}
//	if msg.IsPilot() {
//		// results will be offered for download instead of uploaded
//	}
//
// # Errors
//
// Every stage reports failures as *Error values that carry the stage (Origin), a
// human readable Context and the underlying cause. The Kind is one of
// ErrConfiguration, ErrNetwork or ErrProtocol, and errors.Is matches both the kind
// and anything in the wrapped cause chain.
package experiment
