// Package config loads ldb2pg settings from YAML, flags and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/enviriot/bsonjs/internal/filter"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LDB2PG_"

// DefaultHistoryWindow is how far back log history is migrated.
const DefaultHistoryWindow = 14 * 24 * time.Hour

// Config is the full migrator configuration.
type Config struct {
	Source   SourceConfig  `yaml:"source"`
	Target   TargetConfig  `yaml:"target"`
	Filter   FilterConfig  `yaml:"filter"`
	History  HistoryConfig `yaml:"history"`
	Log      LogConfig     `yaml:"log"`
	Progress bool          `yaml:"progress"`
}

// SourceConfig locates the document store.
type SourceConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
	// ArchiveDatabase holds the archive collection; empty means Database.
	ArchiveDatabase string `yaml:"archive_database"`
}

// TargetConfig locates the Postgres database.
type TargetConfig struct {
	DSN string `yaml:"dsn"`
}

// FilterConfig selects which topics are migrated.
type FilterConfig struct {
	Engine     string `yaml:"engine"`
	Expression string `yaml:"expression"`
}

// HistoryConfig bounds the log history phase.
type HistoryConfig struct {
	Window time.Duration `yaml:"window"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Source:  SourceConfig{Database: "persist"},
		Filter:  FilterConfig{Engine: filter.EngineExpr},
		History: HistoryConfig{Window: DefaultHistoryWindow},
		Log:     LogConfig{Level: "info"},
	}
}

// LoadFile reads path over the defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML data over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from LDB2PG_* variables looked up through
// getenv. Unset or empty variables leave the field alone.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	lookup := func(name string) string {
		return strings.TrimSpace(getenv(EnvPrefix + name))
	}
	strs := map[string]*string{
		"SOURCE_URI":       &c.Source.URI,
		"SOURCE_DATABASE":  &c.Source.Database,
		"ARCHIVE_DATABASE": &c.Source.ArchiveDatabase,
		"TARGET_DSN":       &c.Target.DSN,
		"FILTER":           &c.Filter.Expression,
		"FILTER_ENGINE":    &c.Filter.Engine,
		"LOG_LEVEL":        &c.Log.Level,
	}
	for name, field := range strs {
		if v := lookup(name); v != "" {
			*field = v
		}
	}
	if v := lookup("HISTORY_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sHISTORY_WINDOW: %w", EnvPrefix, err)
		}
		c.History.Window = d
	}
	if v := lookup("PROGRESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sPROGRESS: %w", EnvPrefix, err)
		}
		c.Progress = b
	}
	return nil
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Source.URI) == "" {
		errs = append(errs, errors.New("config: source.uri is required"))
	}
	if strings.TrimSpace(c.Source.Database) == "" {
		errs = append(errs, errors.New("config: source.database is required"))
	}
	if strings.TrimSpace(c.Target.DSN) == "" {
		errs = append(errs, errors.New("config: target.dsn is required"))
	}
	if !slices.Contains(filter.Engines(), strings.ToLower(c.Filter.Engine)) {
		errs = append(errs, fmt.Errorf("config: filter.engine %q is not one of %s", c.Filter.Engine, strings.Join(filter.Engines(), ", ")))
	}
	if c.History.Window <= 0 {
		errs = append(errs, fmt.Errorf("config: history.window must be positive, got %s", c.History.Window))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("config: log.level: %w", err))
	}
	return errors.Join(errs...)
}

// ArchiveDatabase returns the database holding the archive collection.
func (c Config) ArchiveDatabase() string {
	if c.Source.ArchiveDatabase != "" {
		return c.Source.ArchiveDatabase
	}
	return c.Source.Database
}
