// Package config resolves txc's configuration from defaults, JSONC config
// files, TXC_* environment variables and command line flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-hclog"
	"github.com/tailscale/hujson"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// FileName is the project config file looked up in the working directory.
const FileName = ".txc.json"

// Config holds all configuration options.
type Config struct {
	Backend     string `json:"backend,omitempty"`
	DBPath      string `json:"db_path,omitempty"`
	Versioned   *bool  `json:"versioned,omitempty"`
	LogLevel    string `json:"log_level,omitempty"`
	HistoryFile string `json:"history_file,omitempty"`

	// Resolved (not serialized)
	EffectiveCwd string  `json:"-"`
	DBPathAbs    string  `json:"-"`
	Sources      Sources `json:"-"`
}

// Sources tracks where the configuration came from, for print-config.
type Sources struct {
	Global  string   // global config file if loaded
	Project string   // project or explicit config file if loaded
	Env     []string // TXC_* variables that were applied
}

// IsVersioned reports whether scopes pin to the store's latest version.
func (c Config) IsVersioned() bool {
	return c.Versioned != nil && *c.Versioned
}

// Level returns the parsed log level.
func (c Config) Level() hclog.Level {
	return hclog.LevelFromString(c.LogLevel)
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Backend:  BackendSQLite,
		DBPath:   filepath.Join(".txc", "state.sqlite"),
		LogLevel: "warn",
	}
}

// Overrides are values given on the command line. Empty fields are unset.
type Overrides struct {
	Backend string
	DBPath  string
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDir    string            // -C/--cwd; if empty, os.Getwd() is used
	ConfigPath string            // -c/--config
	Overrides  Overrides         // flags
	Env        map[string]string // process environment
}

// Load resolves the configuration. Precedence, highest last:
//
//  1. Defaults
//  2. Global config ($XDG_CONFIG_HOME/txc/config.json or ~/.config/txc/config.json)
//  3. Project config (.txc.json in the working directory) or the -c file
//  4. TXC_* environment variables
//  5. Flags
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDir
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	globalPath := globalConfigPath(input.Env)
	if globalPath != "" {
		globalCfg, loaded, err := loadFile(globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = merge(cfg, globalCfg)
			cfg.Sources.Global = globalPath
		}
	}

	projectPath := filepath.Join(workDir, FileName)
	mustExist := false

	if input.ConfigPath != "" {
		projectPath = input.ConfigPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}

		mustExist = true
	}

	projectCfg, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = merge(cfg, projectCfg)
		cfg.Sources.Project = projectPath
	}

	envCfg, applied, err := fromEnv(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg = merge(cfg, envCfg)
	cfg.Sources.Env = applied

	cfg = merge(cfg, Config{Backend: input.Overrides.Backend, DBPath: input.Overrides.DBPath})

	err = validate(cfg)
	if err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir

	cfg.DBPathAbs = cfg.DBPath
	if !filepath.IsAbs(cfg.DBPathAbs) {
		cfg.DBPathAbs = filepath.Join(workDir, cfg.DBPath)
	}

	if cfg.HistoryFile == "" {
		if home := input.Env["HOME"]; home != "" {
			cfg.HistoryFile = filepath.Join(home, ".txc_history")
		}
	}

	return cfg, nil
}

// globalConfigPath returns $XDG_CONFIG_HOME/txc/config.json, falling back
// to ~/.config/txc/config.json, or "" when neither is known.
func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "txc", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "txc", "config.json")
	}

	return ""
}

// loadFile loads a JSONC config file. Missing optional files are not an
// error and report loaded=false.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case os.IsNotExist(err) && mustExist:
			return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		case mustExist:
			return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		default:
			return Config{}, false, nil
		}
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	// An explicit "db_path": "" is a mistake, not a request for the default.
	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	if v, ok := raw["db_path"].(string); ok && v == "" {
		return Config{}, ErrDBPathEmpty
	}

	return cfg, nil
}

// envConfig is the TXC_* environment surface. Pointers stay nil when the
// variable is unset.
type envConfig struct {
	Backend     *string `env:"TXC_BACKEND"`
	DBPath      *string `env:"TXC_DB_PATH"`
	Versioned   *bool   `env:"TXC_VERSIONED"`
	LogLevel    *string `env:"TXC_LOG_LEVEL"`
	HistoryFile *string `env:"TXC_HISTORY_FILE"`
}

func fromEnv(environ map[string]string) (Config, []string, error) {
	var raw envConfig

	err := env.ParseWithOptions(&raw, env.Options{Environment: environ})
	if err != nil {
		return Config{}, nil, fmt.Errorf("%w: %w", ErrEnv, err)
	}

	var (
		cfg     Config
		applied []string
	)

	setString := func(name string, src *string, dst *string) {
		if src != nil && *src != "" {
			*dst = *src
			applied = append(applied, name)
		}
	}

	setString("TXC_BACKEND", raw.Backend, &cfg.Backend)
	setString("TXC_DB_PATH", raw.DBPath, &cfg.DBPath)
	setString("TXC_LOG_LEVEL", raw.LogLevel, &cfg.LogLevel)
	setString("TXC_HISTORY_FILE", raw.HistoryFile, &cfg.HistoryFile)

	if raw.Versioned != nil {
		cfg.Versioned = raw.Versioned
		applied = append(applied, "TXC_VERSIONED")
	}

	return cfg, applied, nil
}

func merge(base, overlay Config) Config {
	if overlay.Backend != "" {
		base.Backend = overlay.Backend
	}

	if overlay.DBPath != "" {
		base.DBPath = overlay.DBPath
	}

	if overlay.Versioned != nil {
		base.Versioned = overlay.Versioned
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.HistoryFile != "" {
		base.HistoryFile = overlay.HistoryFile
	}

	return base
}

func validate(cfg Config) error {
	switch cfg.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.DBPath == "" {
			return ErrDBPathEmpty
		}
	default:
		return fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownBackend, cfg.Backend, BackendMemory, BackendSQLite)
	}

	if cfg.Level() == hclog.NoLevel {
		return fmt.Errorf("%w: %q", ErrLogLevel, cfg.LogLevel)
	}

	return nil
}
