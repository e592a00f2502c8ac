// Package logger builds the *slog.Logger used across the session client.
//
// Loggers are created with functional options; the environment picks sensible
// level and format defaults and static attributes are attached to every record:
//
//	log := logger.New(
//		logger.WithEnvironment("production", "pavlovia"),
//		logger.WithAttr(slog.String("version", version)),
//	)
//	log.InfoContext(ctx, "session opened", logger.SessionToken(token))
//
// The attribute helpers in attr.go keep key names consistent between components.
// Helpers that receive a nil or empty value return an empty slog.Attr, which slog drops.
package logger
