package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/eihwaz/internal/validator"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Scan       ScanConfig        `yaml:"scan"`
	Build      BuildConfig       `yaml:"build"`
	Cache      CacheConfig       `yaml:"cache"`
	Validation ValidateConfig    `yaml:"validate"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Scan.Validate(); err != nil {
		return err
	}
	if err := c.Build.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return c.Validation.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// ScanConfig holds directory-scanning configuration.
type ScanConfig struct {
	Workers        int      `yaml:"workers"`
	IgnoreFile     string   `yaml:"ignore_file"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
}

// Validate validates the scan configuration.
func (c *ScanConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(0), validation.Max(256)),
	)
}

// BuildConfig holds structure-building configuration.
type BuildConfig struct {
	Workers int `yaml:"workers"`
}

// Validate validates the build configuration.
func (c *BuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(0), validation.Max(256)),
	)
}

// CacheConfig holds scan-result cache configuration. Path, when set, adds a
// persistent SQLite tier under the in-memory one.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
	Path       string        `yaml:"path"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxEntries, validation.Min(0)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
	)
}

// ValidateConfig holds structure-validation limits.
type ValidateConfig struct {
	MaxDepth      int    `yaml:"max_depth"`
	MaxNameLength int    `yaml:"max_name_length"`
	MaxPathLength int    `yaml:"max_path_length"`
	Platform      string `yaml:"platform"`
}

// Validate validates the validation limits.
func (c *ValidateConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MaxDepth, validation.Min(0), validation.Max(1000)),
		validation.Field(&c.MaxNameLength, validation.Min(0)),
		validation.Field(&c.MaxPathLength, validation.Min(0)),
	); err != nil {
		return err
	}
	if c.Platform != "" {
		if _, err := validator.ParsePlatform(c.Platform); err != nil {
			return fmt.Errorf("validate: %w", err)
		}
	}
	return nil
}

// Options converts the section to validator options, filling zero fields
// with the validator's defaults.
func (c *ValidateConfig) Options() validator.Options {
	opts := validator.Options{
		MaxDepth:      c.MaxDepth,
		MaxNameLength: c.MaxNameLength,
		MaxPathLength: c.MaxPathLength,
	}
	if c.Platform != "" {
		if p, err := validator.ParsePlatform(c.Platform); err == nil {
			opts.Platform = p
		}
	}
	return opts
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Scan: ScanConfig{
			Workers:    0, // 0 selects the CPU count
			IgnoreFile: ".structignore",
		},
		Build: BuildConfig{
			Workers: 0,
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 256,
			TTL:        time.Hour,
		},
		Validation: ValidateConfig{
			MaxDepth:      50,
			MaxNameLength: 255,
			MaxPathLength: 260,
			Platform:      "any",
		},
	}
}
