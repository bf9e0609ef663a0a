package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"sharkemon/internal/capture"
	"sharkemon/internal/catalog"
	"sharkemon/internal/discovery"
)

const (
	EnvHome = "SHARKEMON_HOME"

	configFileName = "config.toml"
	ledgerFileName = "discoveries.json"
	logFileName    = "sharkemon.log"
)

// Config is the runtime configuration after defaults and file overrides.
type Config struct {
	NetworkInterface string
	CatalogPath      string
	ConflictPolicy   catalog.ConflictPolicy
	Capture          capture.Config
	MetricsAddr      string
	LogLevel         zerolog.Level
	Retry            discovery.RetryConfig
}

// DefaultConfig returns the settings used when the config file is silent.
func DefaultConfig() Config {
	return Config{
		ConflictPolicy: catalog.ConflictReject,
		Capture:        capture.DefaultConfig(),
		LogLevel:       zerolog.InfoLevel,
		Retry:          discovery.DefaultRetryConfig(),
	}
}

type fileConfig struct {
	NetworkInterface string `toml:"network_interface"`
	CatalogPath      string `toml:"catalog_path"`
	ConflictPolicy   string `toml:"conflict_policy"`
	SnapLen          int32  `toml:"snaplen"`
	Promiscuous      bool   `toml:"promiscuous"`
	ReadTimeout      string `toml:"read_timeout"`
	BPFFilter        string `toml:"bpf_filter"`
	MetricsAddr      string `toml:"metrics_addr"`
	LogLevel         string `toml:"log_level"`
	PersistAttempts  int    `toml:"persist_attempts"`
	PersistBackoff   string `toml:"persist_backoff"`
}

// Home returns the data directory: $SHARKEMON_HOME, or ~/.sharkemon.
func Home() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvHome)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".sharkemon"), nil
}

// Paths are the files kept in the data directory.
type Paths struct {
	Dir    string
	Config string
	Ledger string
	Log    string
}

// PathsIn returns the data file locations under dir.
func PathsIn(dir string) Paths {
	return Paths{
		Dir:    dir,
		Config: filepath.Join(dir, configFileName),
		Ledger: filepath.Join(dir, ledgerFileName),
		Log:    filepath.Join(dir, logFileName),
	}
}

// DefaultPaths returns the data file locations under Home.
func DefaultPaths() (Paths, error) {
	dir, err := Home()
	if err != nil {
		return Paths{}, err
	}
	return PathsIn(dir), nil
}

// Load reads path on top of DefaultConfig. A missing file yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("network_interface") {
		cfg.NetworkInterface = strings.TrimSpace(raw.NetworkInterface)
	}
	if meta.IsDefined("catalog_path") {
		cfg.CatalogPath = strings.TrimSpace(raw.CatalogPath)
	}
	if meta.IsDefined("conflict_policy") {
		p, err := catalog.ParseConflictPolicy(strings.TrimSpace(raw.ConflictPolicy))
		if err != nil {
			return Config{}, fmt.Errorf("parse conflict_policy: %w", err)
		}
		cfg.ConflictPolicy = p
	}
	if meta.IsDefined("snaplen") {
		cfg.Capture.SnapLen = raw.SnapLen
	}
	if meta.IsDefined("promiscuous") {
		cfg.Capture.Promiscuous = raw.Promiscuous
	}
	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.Capture.ReadTimeout = d
	}
	if meta.IsDefined("bpf_filter") {
		cfg.Capture.BPFFilter = strings.TrimSpace(raw.BPFFilter)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("log_level") && strings.TrimSpace(raw.LogLevel) != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw.LogLevel)))
		if err != nil {
			return Config{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = lvl
	}
	if meta.IsDefined("persist_attempts") {
		cfg.Retry.Attempts = raw.PersistAttempts
	}
	if meta.IsDefined("persist_backoff") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PersistBackoff))
		if err != nil {
			return Config{}, fmt.Errorf("parse persist_backoff: %w", err)
		}
		cfg.Retry.InitialDelay = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values a config file can get wrong.
func (c Config) Validate() error {
	if c.Capture.SnapLen <= 0 {
		return fmt.Errorf("invalid config: snaplen must be positive, got %d", c.Capture.SnapLen)
	}
	if c.Capture.ReadTimeout <= 0 {
		return fmt.Errorf("invalid config: read_timeout must be positive, got %s", c.Capture.ReadTimeout)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("invalid config: persist_attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Retry.InitialDelay < 0 {
		return fmt.Errorf("invalid config: persist_backoff must not be negative")
	}
	return nil
}

// Save writes c to path, creating its directory.
func Save(path string, c Config) error {
	raw := fileConfig{
		NetworkInterface: c.NetworkInterface,
		CatalogPath:      c.CatalogPath,
		ConflictPolicy:   c.ConflictPolicy.String(),
		SnapLen:          c.Capture.SnapLen,
		Promiscuous:      c.Capture.Promiscuous,
		ReadTimeout:      c.Capture.ReadTimeout.String(),
		BPFFilter:        c.Capture.BPFFilter,
		MetricsAddr:      c.MetricsAddr,
		LogLevel:         c.LogLevel.String(),
		PersistAttempts:  c.Retry.Attempts,
		PersistBackoff:   c.Retry.InitialDelay.String(),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(raw); err != nil {
		f.Close()
		return fmt.Errorf("save config: %w", err)
	}
	return f.Close()
}

// SaveInterface remembers the capture interface in the config at path,
// leaving every other stored setting as it is on disk.
func SaveInterface(path, name string) error {
	stored, err := Load(path)
	if err != nil {
		return err
	}
	stored.NetworkInterface = name
	return Save(path, stored)
}
