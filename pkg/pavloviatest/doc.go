// Package pavloviatest provides an in-process fake of the pavlovia.org session API
// for tests and local dry runs.
//
//	srv := pavloviatest.New(pavloviatest.WithExperimentStatus("RUNNING"))
//	defer srv.Close()
//
//	// srv.ConfigURL() serves a configuration document pointing back at srv.
//	// srv.Calls(pavloviatest.RouteUpload) lists every results upload received.
//
// The server records each request with its decoded form so tests can assert on the
// exact protocol traffic. Individual routes can be made to fail with WithFailure.
package pavloviatest
