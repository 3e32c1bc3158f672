// Package config loads the chainhost configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appDirName = "algo-pluginhost"
	fileName   = "config.yaml"
)

// Config is the on-disk configuration.
type Config struct {
	SampleRate  float64             `yaml:"sample_rate"`
	BlockSize   int                 `yaml:"block_size"`
	CatalogPath string              `yaml:"catalog_path"`
	PresetDB    string              `yaml:"preset_db"`
	SearchPaths map[string][]string `yaml:"search_paths,omitempty"`
	LogLevel    string              `yaml:"log_level"`
	ScanTimeout time.Duration       `yaml:"scan_timeout"`
}

// DefaultConfig returns the configuration written on first run. Paths live
// next to the configuration file in the user's configuration directory.
func DefaultConfig() Config {
	dir := appDir()

	return Config{
		SampleRate:  44100,
		BlockSize:   512,
		CatalogPath: filepath.Join(dir, "plugins.yaml"),
		PresetDB:    filepath.Join(dir, "presets.db"),
		LogLevel:    "info",
		ScanTimeout: 2 * time.Minute,
	}
}

func appDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return appDirName
	}

	return filepath.Join(dir, appDirName)
}

// DefaultPath returns the configuration file location.
func DefaultPath() string {
	return filepath.Join(appDir(), fileName)
}

// Load reads the configuration at path, writing DefaultConfig there first
// if the file does not exist. Fields missing from the file keep their
// defaults. The result is validated.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return Config{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("config: encode defaults: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write defaults: %w", err)
	}

	return nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %g", c.SampleRate)
	}

	if c.BlockSize <= 0 {
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	}

	if c.CatalogPath == "" {
		return errors.New("catalog_path is empty")
	}

	if c.PresetDB == "" {
		return errors.New("preset_db is empty")
	}

	if c.ScanTimeout < 0 {
		return fmt.Errorf("scan_timeout must not be negative, got %s", c.ScanTimeout)
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	return nil
}

// Level parses LogLevel. An empty level is slog.LevelInfo.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return level, nil
	}

	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("log_level: %w", err)
	}

	return level, nil
}
