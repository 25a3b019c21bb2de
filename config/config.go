package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/snow-ghost/cracker/core"
	"github.com/snow-ghost/cracker/oracle/process"
	"github.com/snow-ghost/cracker/pkg/logging"
	"github.com/snow-ghost/cracker/search"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfigPath = "CRACKER_CONFIG"
	EnvLogLevel   = "CRACKER_LOG_LEVEL"
	EnvDistance   = "CRACKER_DISTANCE"
	EnvCharStep   = "CRACKER_CHAR_STEP"
)

// Config holds the settings of one recovery run
type Config struct {
	// Checker is the command template in process mode and the plugin argument string
	// in plugin mode.
	Checker     string         `yaml:"checker"`
	Match       string         `yaml:"match"`
	Plugin      string         `yaml:"plugin"`
	Distance    int            `yaml:"distance"`
	DryRun      bool           `yaml:"dry_run"`
	CharStep    int            `yaml:"char_step"`
	RateLimit   float64        `yaml:"rate_limit"` // oracle calls per second, 0 for unlimited
	MemoSize    int            `yaml:"memo_size"`
	MetricsAddr string         `yaml:"metrics_addr"`
	Log         logging.Config `yaml:"log"`
}

// Default returns a configuration that widens the distance from zero over the full
// printable character range.
func Default() *Config {
	return &Config{
		Distance: search.AnyDistance,
		CharStep: 1,
		Log:      logging.DefaultConfig(),
	}
}

// Load builds a configuration from defaults, then the YAML file at path (or
// CRACKER_CONFIG when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	cfg.Log.Level = getEnv(EnvLogLevel, cfg.Log.Level)
	cfg.Distance = getEnvInt(EnvDistance, cfg.Distance)
	cfg.CharStep = getEnvInt(EnvCharStep, cfg.CharStep)
	return cfg, nil
}

// PluginMode reports whether candidates are checked by a plugin rather than a process.
func (c *Config) PluginMode() bool { return c.Plugin != "" }

// Validate checks the configuration before any oracle is built. Every failure wraps
// core.ErrUsage or core.ErrNoPlaceholder.
func (c *Config) Validate() error {
	switch {
	case c.Match != "" && c.Plugin != "":
		return fmt.Errorf("%w: can't specify both --match and --plugin", core.ErrUsage)
	case c.Match == "" && c.Plugin == "":
		return fmt.Errorf("%w: must specify one of --match or --plugin", core.ErrUsage)
	}
	if !c.PluginMode() {
		if strings.TrimSpace(c.Checker) == "" {
			return fmt.Errorf("%w: required argument --checker missing", core.ErrUsage)
		}
		if _, _, err := process.ParseTemplate(c.Checker); err != nil {
			return err
		}
	}
	if c.Distance < search.AnyDistance {
		return fmt.Errorf("%w: distance %d is negative", core.ErrUsage, c.Distance)
	}
	if err := core.PrintableASCII().WithStep(c.CharStep).Validate(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrUsage, err)
	}
	if maxStep := int(core.LastPrintable - core.FirstPrintable); c.CharStep > maxStep {
		return fmt.Errorf("%w: char step %d above %d", core.ErrUsage, c.CharStep, maxStep)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit %g is negative", core.ErrUsage, c.RateLimit)
	}
	if c.MemoSize < 0 {
		return fmt.Errorf("%w: memo size %d is negative", core.ErrUsage, c.MemoSize)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.Join(core.ErrUsage, err)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
