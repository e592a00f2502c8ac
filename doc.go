// Package pavlovia records the results of a behavioral experiment against the
// pavlovia.org experiment-hosting service.
//
// A run follows one strictly ordered protocol: fetch the configuration, open a
// session, transfer a single results payload, close the session. Pilot runs and
// experiments that are not running get their results offered for local download
// instead of uploaded.
//
// The Plugin mirrors what the host runtime expects: a results logger of type
// "csv" and a finish task of type "postCsv".
//
//	client := transport.NewClient()
//	p := pavlovia.New(ctx, client,
//		pavlovia.WithConfigURL("config.json"),
//		pavlovia.WithLifecycle(
//			lifecycle.WithPageURL(pageURL),
//			lifecycle.WithDownloader(downloader),
//		),
//	)
//	host.AddLogger(p.Logger())
//	host.AddTask(p.FinishTask())
//
// Nothing the plugin does ever fails the host: every failure is logged and the
// experiment carries on with degraded telemetry.
//
// The building blocks live under pkg/: transport (confirmed and fire-and-forget
// senders), experiment (configuration and error taxonomy), session, results,
// file (download sinks) and lifecycle.
package pavlovia
