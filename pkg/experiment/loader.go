package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/minnojs/pavlovia/pkg/logger"
	"github.com/minnojs/pavlovia/pkg/transport"
)

// DefaultConfigURL is fetched when no configuration URL is given.
const DefaultConfigURL = "config.json"

const (
	originConfigure        = "configure"
	originGetConfiguration = "get_configuration"
	contextConfigure       = "when configuring the plugin"
)

// Loader fetches and validates the configuration document.
type Loader struct {
	sender  transport.Sender
	pageURL string
	log     *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPageURL sets the URL of the page hosting the experiment. Relative
// configuration URLs are resolved against it and its query supplies the
// server message.
func WithPageURL(pageURL string) LoaderOption {
	return func(l *Loader) {
		l.pageURL = pageURL
	}
}

// WithLoaderLogger sets the logger used to report the loaded configuration.
func WithLoaderLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoader creates a loader that fetches documents with sender.
func NewLoader(sender transport.Sender, opts ...LoaderOption) *Loader {
	l := &Loader{
		sender: sender,
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the configuration document, validates it and extracts the server
// message from the page URL. Every failure is a configuration error; a failed fetch
// additionally matches ErrNetwork. Exactly one request is issued.
func (l *Loader) Load(ctx context.Context, configURL string) (*Config, ServerMessage, error) {
	if configURL == "" {
		configURL = DefaultConfigURL
	}

	target, err := l.resolve(configURL)
	if err != nil {
		return nil, nil, ConfigurationError(originConfigure, contextConfigure, err)
	}

	resp, err := l.sender.Send(ctx, transport.Request{Method: http.MethodGet, URL: target})
	if err != nil {
		readCtx := "when reading the configuration file: " + target
		return nil, nil, ConfigurationError(originConfigure, contextConfigure,
			NetworkError(originGetConfiguration, readCtx, err))
	}
	if resp == nil {
		return nil, nil, ConfigurationError(originConfigure, contextConfigure,
			fmt.Errorf("no response for %s", target))
	}

	if !json.Valid(resp.Body) {
		return nil, nil, ConfigurationError(originConfigure, contextConfigure,
			fmt.Errorf("configuration file %s is not valid JSON", target))
	}
	if err := validateDocument(resp.Body); err != nil {
		return nil, nil, ConfigurationError(originConfigure, contextConfigure, err)
	}

	var cfg Config
	if err := json.Unmarshal(resp.Body, &cfg); err != nil {
		return nil, nil, ConfigurationError(originConfigure, contextConfigure, err)
	}

	msg := ServerMessageFromURL(l.pageURL)
	l.log.DebugContext(ctx, "configuration loaded",
		logger.Origin(originConfigure),
		logger.Experiment(cfg.Experiment.FullPath),
		slog.Int("server_params", len(msg)),
	)

	return &cfg, msg, nil
}

// resolve turns configURL into an absolute URL using the page URL as base.
func (l *Loader) resolve(configURL string) (string, error) {
	ref, err := url.Parse(configURL)
	if err != nil {
		return "", fmt.Errorf("invalid configuration URL %q: %w", configURL, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if l.pageURL == "" {
		return "", fmt.Errorf("configuration URL %q is relative and no page URL is set", configURL)
	}
	base, err := url.Parse(l.pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", l.pageURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}
