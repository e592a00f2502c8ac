// Package lifecycle drives a complete run against the session service.
//
// The host calls Init once at startup and Finish once when the experiment ends:
//
//	o := lifecycle.New(client,
//		lifecycle.WithBeacon(beacon),
//		lifecycle.WithDownloader(downloader),
//		lifecycle.WithLogger(log),
//	)
//	go o.Init(ctx, "config.json")
//	// ... experiment runs ...
//	o.Finish(ctx, csv)
//
// Finish waits for Init. No stage failure escapes the orchestrator: each one is
// logged with its origin and context, and is available through Err for hosts
// that want to report degraded telemetry.
package lifecycle
