package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults applied to missing settings.
const (
	DefaultFeeLimitSat  = 10
	DefaultTimePref     = 0.0
	DefaultLookbackDays = 30
)

// Config represents the global ~/.lnchat/config.toml.
type Config struct {
	DefaultProfile string  `toml:"default_profile"`
	LND            LND     `toml:"lnd"`
	Prefs          Prefs   `toml:"prefs"`
	Sync           Sync    `toml:"sync"`
	Tracing        Tracing `toml:"tracing"`
}

// LND locates the node. The macaroon and certificate stay on disk; only
// their paths are configured.
type LND struct {
	Host         string `toml:"host"`
	TLSCertPath  string `toml:"tls_cert_path"`
	MacaroonPath string `toml:"macaroon_path"`
}

// Prefs are user preferences read by the engine.
type Prefs struct {
	Mute          bool    `toml:"mute"`
	FeeLimitSat   int64   `toml:"fee_limit_sat"`
	TimePref      float64 `toml:"time_pref"`
	ShowAnonymous *bool   `toml:"show_anonymous"`
}

// AnonymousVisible reports whether the ANON conversation is listed. It
// defaults to true.
func (p Prefs) AnonymousVisible() bool {
	return p.ShowAnonymous == nil || *p.ShowAnonymous
}

// Sync tunes the reconciliation engine.
type Sync struct {
	LookbackDays int `toml:"lookback_days"`
}

// Tracing controls span export.
type Tracing struct {
	Enabled bool `toml:"enabled"`
	Stdout  bool `toml:"stdout"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Prefs.FeeLimitSat <= 0 {
		c.Prefs.FeeLimitSat = DefaultFeeLimitSat
	}
	if c.Prefs.TimePref < -1 || c.Prefs.TimePref > 1 {
		c.Prefs.TimePref = DefaultTimePref
	}
	if c.Sync.LookbackDays <= 0 {
		c.Sync.LookbackDays = DefaultLookbackDays
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to defaults when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
