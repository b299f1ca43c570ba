package config

import "errors"

var (
	// ErrConfigInvalid is returned when a config file cannot be parsed.
	ErrConfigInvalid = errors.New("invalid config")

	// ErrConfigFileNotFound is returned when an explicit -c file is missing.
	ErrConfigFileNotFound = errors.New("config file not found")

	// ErrConfigFileRead is returned when an explicit -c file cannot be read.
	ErrConfigFileRead = errors.New("cannot read config file")

	// ErrUnknownBackend is returned for a backend other than memory or sqlite.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrDBPathEmpty is returned when the sqlite backend has no db_path.
	ErrDBPathEmpty = errors.New("db_path cannot be empty")

	// ErrLogLevel is returned for a log level hclog does not know.
	ErrLogLevel = errors.New("invalid log level")

	// ErrEnv is returned when TXC_* environment variables cannot be parsed.
	ErrEnv = errors.New("invalid environment")
)
