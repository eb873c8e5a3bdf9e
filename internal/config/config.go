// Package config loads and stores the program settings and saved device
// profiles.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"wspr-tx-config/internal/wspr"
)

const configDirName = "wspr-tx-config"
const configFileName = "config.yaml"

// Config is the on-disk program configuration.
type Config struct {
	Port          string                   `yaml:"port,omitempty"`
	BaudRate      int                      `yaml:"baudRate"`
	ResetOnOpen   bool                     `yaml:"resetOnOpen"`
	QueryTimeout  time.Duration            `yaml:"queryTimeout"`
	QueryAttempts int                      `yaml:"queryAttempts"`
	Debug         bool                     `yaml:"debug"`
	Trace         TraceConfig              `yaml:"trace"`
	Profiles      map[string]wspr.Settings `yaml:"profiles,omitempty"`

	path string
	// stored holds the file values before environment and flag
	// overrides; Save writes these so overrides stay per-run.
	stored *Config
}

// TraceConfig controls the rotating serial traffic log.
type TraceConfig struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaudRate:      9600,
		QueryTimeout:  time.Second,
		QueryAttempts: 3,
		Trace: TraceConfig{
			MaxSizeMB:  5,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}

// Dir returns the path to the app's config directory, creating it.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config dir: %w", err)
	}
	dir := filepath.Join(base, configDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	return dir, nil
}

// DefaultPath is config.yaml inside Dir.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads path (DefaultPath when empty), then applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	file := *cfg
	cfg.stored = &file
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WSPRCFG_PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("WSPRCFG_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BaudRate = n
		}
	}
	if v := os.Getenv("WSPRCFG_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
	if v := os.Getenv("WSPRCFG_TRACE_FILE"); v != "" {
		c.Trace.File = v
	}
}

// Validate checks ranges and every stored profile.
func (c *Config) Validate() error {
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("invalid query timeout %s", c.QueryTimeout)
	}
	if c.QueryAttempts <= 0 {
		return fmt.Errorf("invalid query attempts %d", c.QueryAttempts)
	}
	for name, p := range c.Profiles {
		if _, err := p.Normalize(); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
	}
	return nil
}

// Path is where Save writes.
func (c *Config) Path() string { return c.path }

// SetPort changes the port for this run and remembers it for the next.
func (c *Config) SetPort(name string) {
	c.Port = name
	if c.stored != nil {
		c.stored.Port = name
	}
}

// Save writes the configuration back to its file. Values that came from
// environment variables or command line flags are not persisted; the
// profiles and any port set through SetPort are.
func (c *Config) Save() error {
	if c.path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		c.path = p
	}
	out := *c
	if c.stored != nil {
		out = *c.stored
		out.Profiles = c.Profiles
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ProfileNames returns the saved profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for n := range c.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Profile looks up a saved profile.
func (c *Config) Profile(name string) (wspr.Settings, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return wspr.Settings{}, fmt.Errorf("no profile named %q", name)
	}
	return p, nil
}

// SetProfile validates and stores s under name, replacing any existing one.
func (c *Config) SetProfile(name string, s wspr.Settings) error {
	if name == "" {
		return errors.New("profile name is empty")
	}
	s, err := s.Normalize()
	if err != nil {
		return err
	}
	if c.Profiles == nil {
		c.Profiles = make(map[string]wspr.Settings)
	}
	c.Profiles[name] = s
	return nil
}

// DeleteProfile removes name. Deleting a missing profile is an error.
func (c *Config) DeleteProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("no profile named %q", name)
	}
	delete(c.Profiles, name)
	return nil
}
