package config

import "errors"

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into Settings
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	// ErrLoadingEnvFile is returned when an explicitly requested .env file cannot be read
	ErrLoadingEnvFile = errors.New("failed to load env file")

	// ErrInvalidSettings is returned when parsed values are inconsistent
	ErrInvalidSettings = errors.New("invalid settings")
)
