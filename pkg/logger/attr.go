package logger

import (
	"log/slog"
	"time"
)

// Error records err under the key "error". Nil errors yield an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Origin records the protocol stage that produced a record or error.
func Origin(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("origin", name)
}

// Context records the human readable context of a failure.
func Context(text string) slog.Attr {
	if text == "" {
		return slog.Attr{}
	}
	return slog.String("context", text)
}

// Experiment records the experiment full path.
func Experiment(fullpath string) slog.Attr {
	if fullpath == "" {
		return slog.Attr{}
	}
	return slog.String("experiment", fullpath)
}

// SessionToken records the session token.
func SessionToken(token string) slog.Attr {
	if token == "" {
		return slog.Attr{}
	}
	return slog.String("session_token", token)
}

// ResultsKey records the key a results payload was stored under.
func ResultsKey(key string) slog.Attr {
	if key == "" {
		return slog.Attr{}
	}
	return slog.String("results_key", key)
}

// RunID records the orchestrator run identifier under the key "run_id".
func RunID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("run_id", id)
}

// HTTP groups the outcome of a single request.
func HTTP(method, url string, status int, d time.Duration) slog.Attr {
	return slog.Group("http",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", status),
		slog.Duration("duration", d),
	)
}
