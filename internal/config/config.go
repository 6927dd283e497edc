// Package config holds the settings shared by misu and misud. Values come
// from built-in defaults, optionally overlaid by a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/misu-units/misu/internal/watcher"
)

const (
	// EnvConfig names a config file to read instead of ~/.misu/config.yaml.
	EnvConfig = "MISU_CONFIG"
	// EnvHome overrides the ~/.misu state directory.
	EnvHome = "MISU_HOME"

	FileName = "config.yaml"
)

// CatalogConfig selects the unit-definition files loaded at start-up, after
// the embedded catalog when Builtin is set.
type CatalogConfig struct {
	Builtin  bool     `yaml:"builtin"`
	Dirs     []string `yaml:"dirs"`
	Patterns []string `yaml:"patterns"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type Config struct {
	HomeDir        string        `yaml:"home_dir"`
	SocketPath     string        `yaml:"socket_path"`
	DatabasePath   string        `yaml:"database_path"`
	RepresentDir   string        `yaml:"represent_dir"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	Locale         string        `yaml:"locale"`
	MaxConnections int           `yaml:"max_connections"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Catalog        CatalogConfig `yaml:"catalog"`
	Metrics        MetricsConfig `yaml:"metrics"`

	Watcher watcher.WatcherConfig `yaml:"watcher"`
}

func defaultHome() string {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".misu")
}

// Default returns the built-in settings rooted at ~/.misu (or $MISU_HOME).
func Default() *Config {
	home := defaultHome()

	return &Config{
		HomeDir:        home,
		SocketPath:     filepath.Join(home, "misud.sock"),
		DatabasePath:   filepath.Join(home, "worksheet.db"),
		RepresentDir:   filepath.Join(home, "represent"),
		LogLevel:       "info",
		LogFormat:      "text",
		Locale:         "en",
		MaxConnections: 64,
		RequestTimeout: 5 * time.Second,
		Catalog: CatalogConfig{
			Builtin:  true,
			Dirs:     []string{filepath.Join(home, "units")},
			Patterns: []string{"**/*.yaml", "**/*.yml"},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Watcher: watcher.DefaultWatcherConfig(),
	}
}

// Load reads $MISU_CONFIG, or config.yaml in the home directory when it
// exists. A missing default file is not an error.
func Load() (*Config, error) {
	if path := os.Getenv(EnvConfig); path != "" {
		return LoadFile(path)
	}

	path := filepath.Join(defaultHome(), FileName)
	cfg, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFile overlays the YAML file at path on the defaults. Paths that are
// not absolute resolve against the home directory; a leading "~/" expands
// to the user's home.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	def := Default()
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Paths the file leaves alone follow a relocated home directory.
	if cfg.HomeDir != def.HomeDir {
		rebase(&cfg.SocketPath, def.SocketPath, def.HomeDir)
		rebase(&cfg.DatabasePath, def.DatabasePath, def.HomeDir)
		rebase(&cfg.RepresentDir, def.RepresentDir, def.HomeDir)
		if len(cfg.Catalog.Dirs) == len(def.Catalog.Dirs) {
			for i := range cfg.Catalog.Dirs {
				rebase(&cfg.Catalog.Dirs[i], def.Catalog.Dirs[i], def.HomeDir)
			}
		}
	}

	cfg.HomeDir = expandHome(cfg.HomeDir)
	cfg.SocketPath = cfg.resolve(cfg.SocketPath)
	cfg.DatabasePath = cfg.resolve(cfg.DatabasePath)
	cfg.RepresentDir = cfg.resolve(cfg.RepresentDir)
	for i, dir := range cfg.Catalog.Dirs {
		cfg.Catalog.Dirs[i] = cfg.resolve(dir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func rebase(p *string, def, home string) {
	if *p == def {
		if rel, err := filepath.Rel(home, def); err == nil {
			*p = rel
		}
	}
}

func (c *Config) resolve(p string) string {
	p = expandHome(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.HomeDir, p)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, strings.TrimPrefix(p, "~"))
	}
	return p
}

func (c *Config) Validate() error {
	switch {
	case c.HomeDir == "":
		return errors.New("home_dir must be set")
	case c.SocketPath == "":
		return errors.New("socket_path must be set")
	case c.DatabasePath == "":
		return errors.New("database_path must be set")
	case c.RequestTimeout < 0:
		return errors.New("request_timeout must not be negative")
	case c.MaxConnections < 0:
		return errors.New("max_connections must not be negative")
	case c.Metrics.Enabled && c.Metrics.Addr == "":
		return errors.New("metrics.addr must be set when metrics are enabled")
	}
	return nil
}

// PIDPath and LockPath live next to the socket.
func (c *Config) PIDPath() string {
	return filepath.Join(filepath.Dir(c.SocketPath), "misud.pid")
}

func (c *Config) LockPath() string {
	return filepath.Join(filepath.Dir(c.SocketPath), "misud.lock")
}

func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.HomeDir, filepath.Dir(c.SocketPath), c.RepresentDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
