// Package transport issues the individual network requests used by the session
// client: one confirmed request/response exchange, or one best-effort send that is
// not awaited.
//
// Both behaviours sit behind the same Sender interface so callers select between them
// with a single flag instead of duplicating code paths:
//
//	client := transport.NewClient(transport.WithTimeout(10 * time.Second))
//	beacon := transport.NewBeacon(client)
//
//	sender := transport.Select(client, beacon, sync)
//	resp, err := sender.Send(ctx, transport.Request{
//		Method: http.MethodPost,
//		URL:    "https://pavlovia.org/api/v2/experiments/u%2Fexp1/sessions",
//		Form:   url.Values{"pilotToken": {"abc"}},
//	})
//
// A Client treats any status in the 200-399 range as success, mirroring the browser
// request the protocol was designed around. Everything else is reported as a
// *StatusError wrapping ErrUnexpectedStatus.
//
// A Beacon dispatches the request in a detached goroutine and returns immediately with
// a nil Response. It only supports POST, the same restriction the browser beacon API
// has. Flush waits for in-flight sends, which a short-lived process needs before exit.
package transport
