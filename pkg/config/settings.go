package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable read into Settings.
const EnvPrefix = "PAVLOVIA_"

// Settings configures a headless run.
type Settings struct {
	ConfigURL      string        `env:"CONFIG_URL" envDefault:"config.json"`
	PageURL        string        `env:"PAGE_URL"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	BeaconTimeout  time.Duration `env:"BEACON_TIMEOUT" envDefault:"5s"`

	DownloadDir     string `env:"DOWNLOAD_DIR" envDefault:"."`
	DownloadBaseURL string `env:"DOWNLOAD_BASE_URL"`
	S3              S3     `envPrefix:"S3_"`

	Env       string `env:"ENV" envDefault:"development"`
	LogFormat string `env:"LOG_FORMAT"`
	LogLevel  string `env:"LOG_LEVEL"`
}

// S3 selects an S3 bucket as the download sink when Bucket is set.
type S3 struct {
	Bucket         string `env:"BUCKET"`
	Region         string `env:"REGION" envDefault:"us-east-1"`
	Endpoint       string `env:"ENDPOINT"`
	AccessKeyID    string `env:"ACCESS_KEY_ID"`
	SecretKey      string `env:"SECRET_KEY"`
	Prefix         string `env:"PREFIX"`
	BaseURL        string `env:"BASE_URL"`
	ForcePathStyle bool   `env:"FORCE_PATH_STYLE"`
}

// Enabled reports whether results should be offered through S3.
func (s S3) Enabled() bool {
	return s.Bucket != ""
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	files       []string
	environment map[string]string
}

// WithEnvFiles loads the given .env files instead of the default ./.env.
// Unlike the default file, these must exist.
func WithEnvFiles(files ...string) Option {
	return func(o *loadOptions) {
		o.files = append(o.files, files...)
	}
}

// WithEnvironment reads variables from env instead of the process environment.
// No .env file is loaded.
func WithEnvironment(environment map[string]string) Option {
	return func(o *loadOptions) {
		o.environment = environment
	}
}

var defaultEnvLoaded sync.Once

// Load reads Settings from the environment. The default .env file is loaded
// once per process if present; variables already set take precedence.
//
// Example:
//
//	settings, err := config.Load()
//	if err != nil {
//		return err
//	}
//	client := transport.NewClient(transport.WithTimeout(settings.RequestTimeout))
func Load(opts ...Option) (*Settings, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch {
	case o.environment != nil:
	case len(o.files) > 0:
		if err := godotenv.Load(o.files...); err != nil {
			return nil, errors.Join(ErrLoadingEnvFile, err)
		}
	default:
		defaultEnvLoaded.Do(func() {
			// The .env file is optional.
			_ = godotenv.Load()
		})
	}

	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{
		Prefix:      EnvPrefix,
		Environment: o.environment,
	}); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad(opts ...Option) *Settings {
	s, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
	return s
}

func (s *Settings) validate() error {
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive, got %s", ErrInvalidSettings, s.RequestTimeout)
	}
	if s.BeaconTimeout <= 0 {
		return fmt.Errorf("%w: beacon timeout must be positive, got %s", ErrInvalidSettings, s.BeaconTimeout)
	}
	if (s.S3.AccessKeyID == "") != (s.S3.SecretKey == "") {
		return fmt.Errorf("%w: S3 access key id and secret key must be set together", ErrInvalidSettings)
	}
	return nil
}
