// Package config loads prquick settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "PRQUICK_CONFIG"

// Config is the top-level configuration.
type Config struct {
	DBPath     string        `yaml:"db_path"`
	APIBaseURL string        `yaml:"api_base_url"`
	Browser    BrowserConfig `yaml:"browser"`
	Inject     InjectConfig  `yaml:"inject"`
	UI         UIConfig      `yaml:"ui"`
	Channel    ChannelConfig `yaml:"channel"`
	Admin      AdminConfig   `yaml:"admin"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote      string `yaml:"remote"`
	Headless    bool   `yaml:"headless"`
	Stealth     *bool  `yaml:"stealth"`
	StartURL    string `yaml:"start_url"`
	UserDataDir string `yaml:"user_data_dir"`
	XvfbDisplay string `yaml:"xvfb_display"`
}

// StealthEnabled reports the stealth setting, on unless set to false.
func (b BrowserConfig) StealthEnabled() bool {
	return b.Stealth == nil || *b.Stealth
}

// InjectConfig tunes the injection engine.
type InjectConfig struct {
	Debounce        time.Duration `yaml:"debounce"`
	NavigationDelay time.Duration `yaml:"navigation_delay"`
}

// UIConfig tunes the toolbar.
type UIConfig struct {
	ReloadDelay time.Duration `yaml:"reload_delay"`
}

// ChannelConfig tunes the page/agent channel.
type ChannelConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// AdminConfig enables the loopback admin server. Empty Addr = disabled.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Load reads path, or the file named by PRQUICK_CONFIG when path is empty.
// With neither set, or when the env-named file does not exist, it returns
// the defaults.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	env := os.Getenv(EnvPath)
	if env == "" {
		return Default(), nil
	}
	cfg, err := LoadFile(env)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// KeyPath is the age identity file sealing the credential database.
func (c *Config) KeyPath() string {
	return c.DBPath + ".key"
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "prquick", "prquick.db")
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = defaultDBPath()
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://api.github.com"
	}
	if c.Browser.StartURL == "" {
		c.Browser.StartURL = "https://github.com/pulls"
	}
	if c.Inject.Debounce <= 0 {
		c.Inject.Debounce = 100 * time.Millisecond
	}
	if c.Inject.NavigationDelay <= 0 {
		c.Inject.NavigationDelay = 50 * time.Millisecond
	}
	if c.UI.ReloadDelay <= 0 {
		c.UI.ReloadDelay = time.Second
	}
	if c.Channel.Timeout <= 0 {
		c.Channel.Timeout = 30 * time.Second
	}
}
