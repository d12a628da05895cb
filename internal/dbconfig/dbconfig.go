// Package dbconfig loads the layered configuration used by cmd/gqldb:
// defaults, then a project or user .gqldb/config.yaml (see Load), then
// GQLDB_-prefixed environment variables.
package dbconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the settings a running database needs that aren't part
// of its on-disk state.
type Config struct {
	// DatabasesRoot is the directory under which named databases live.
	DatabasesRoot string
	// Actor is the default user name attributed to uncommitted work.
	Actor string
	// LockTimeout bounds how long Acquire waits for the cross-process
	// database lock before giving up.
	LockTimeout time.Duration
	// PageCacheSize is an advisory hint for how many pages a table may
	// keep warm; zero means "no caching beyond the OS page cache".
	PageCacheSize int
	// LogJSON selects slog.JSONHandler over slog.TextHandler in cmd/gqldb.
	LogJSON bool
}

// Load resolves a Config by walking up from the current working
// directory for a project .gqldb/config.yaml, falling back to
// $XDG_CONFIG_HOME/gqldb/config.yaml and then $HOME/.gqldb/config.yaml,
// then applying GQLDB_-prefixed environment variable overrides.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path, ok := findProjectConfig(); ok {
		v.SetConfigFile(path)
	} else if path, ok := findUserConfig(); ok {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("GQLDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("databases-root", defaultDatabasesRoot())
	v.SetDefault("actor", defaultActor())
	v.SetDefault("lock-timeout", "30s")
	v.SetDefault("page-cache-size", 0)
	v.SetDefault("log-json", false)

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("dbconfig: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	lockTimeout, err := time.ParseDuration(v.GetString("lock-timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("dbconfig: parsing lock-timeout %q: %w", v.GetString("lock-timeout"), err)
	}

	return Config{
		DatabasesRoot: v.GetString("databases-root"),
		Actor:         v.GetString("actor"),
		LockTimeout:   lockTimeout,
		PageCacheSize: v.GetInt("page-cache-size"),
		LogJSON:       v.GetBool("log-json"),
	}, nil
}

func findProjectConfig() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for dir := cwd; ; {
		path := filepath.Join(dir, ".gqldb", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func findUserConfig() (string, bool) {
	if dir, err := os.UserConfigDir(); err == nil {
		path := filepath.Join(dir, "gqldb", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".gqldb", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func defaultDatabasesRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return "databases"
	}
	return filepath.Join(filepath.Dir(exe), "databases")
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "anonymous"
}

// yamlConfig mirrors Config with a string lock-timeout, matching the
// duration format findProjectConfig/Load expect on disk (yaml.v3
// marshals time.Duration as a bare integer of nanoseconds, not
// "30s", so Config itself can't be marshaled directly).
type yamlConfig struct {
	DatabasesRoot string `yaml:"databases-root"`
	Actor         string `yaml:"actor"`
	LockTimeout   string `yaml:"lock-timeout"`
	PageCacheSize int    `yaml:"page-cache-size"`
	LogJSON       bool   `yaml:"log-json"`
}

// WriteDefault writes cfg to path as YAML, creating parent directories
// as needed, for `gqldb config init`.
func WriteDefault(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("dbconfig: creating %s: %w", filepath.Dir(path), err)
	}
	out, err := yaml.Marshal(yamlConfig{
		DatabasesRoot: cfg.DatabasesRoot,
		Actor:         cfg.Actor,
		LockTimeout:   cfg.LockTimeout.String(),
		PageCacheSize: cfg.PageCacheSize,
		LogJSON:       cfg.LogJSON,
	})
	if err != nil {
		return fmt.Errorf("dbconfig: marshaling default config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("dbconfig: writing %s: %w", path, err)
	}
	return nil
}
