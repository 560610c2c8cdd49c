// Package config loads the daemon configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

var ErrInvalidConfig = errors.New("invalid config")

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

type fileConfig struct {
	ProjectRoot    string   `toml:"project_root"`
	InboxDir       string   `toml:"inbox_dir"`
	RulesFile      string   `toml:"rules_file"`
	RecordStoreDSN string   `toml:"record_store_dsn"`
	HTTPAddr       string   `toml:"http_addr"`
	HTTPToken      string   `toml:"http_token"`
	SettleWindow   duration `toml:"settle_window"`
}

type Config struct {
	// ProjectRoot is the jail every filing operation is confined to.
	ProjectRoot string
	// InboxDir is the drop folder watched for incoming files. Empty
	// disables the watcher.
	InboxDir string
	// RulesFile points at the JSON keyword-routing rules. Empty means
	// everything files to the fallback folder.
	RulesFile string
	// RecordStoreDSN selects the dedup record store; empty means in-memory.
	RecordStoreDSN string
	// HTTPAddr is the API listen address. Empty disables the API.
	HTTPAddr  string
	HTTPToken string
	// SettleWindow is how long an inbox file must be quiet before filing.
	SettleWindow time.Duration
}

const defaultSettleWindow = 2 * time.Second

// Load reads and validates a TOML config file.
func Load(path string) (Config, error) {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg := Config{
		ProjectRoot:    fc.ProjectRoot,
		InboxDir:       fc.InboxDir,
		RulesFile:      fc.RulesFile,
		RecordStoreDSN: fc.RecordStoreDSN,
		HTTPAddr:       fc.HTTPAddr,
		HTTPToken:      fc.HTTPToken,
		SettleWindow:   fc.SettleWindow.Duration,
	}
	if cfg.SettleWindow <= 0 {
		cfg.SettleWindow = defaultSettleWindow
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ProjectRoot == "" {
		return fmt.Errorf("%w: project_root is required", ErrInvalidConfig)
	}
	if !filepath.IsAbs(c.ProjectRoot) {
		return fmt.Errorf("%w: project_root must be an absolute path", ErrInvalidConfig)
	}
	if c.InboxDir != "" && !filepath.IsAbs(c.InboxDir) {
		return fmt.Errorf("%w: inbox_dir must be an absolute path", ErrInvalidConfig)
	}
	return nil
}
