package config

import (
	"fmt"
	"time"
)

// Config represents a gristmill.yaml configuration file.
// All values are optional and act as defaults for gristmill run flags.
// CLI flags always override config values.
type Config struct {
	Fn        string        `yaml:"fn"`
	Workers   int           `yaml:"workers"`
	ChunkSize int           `yaml:"chunk_size"`
	Worker    string        `yaml:"worker"`
	Progress  string        `yaml:"progress"`
	Input     InputConfig   `yaml:"input"`
	Redis     RedisConfig   `yaml:"redis"`
	Adapter   AdapterConfig `yaml:"adapter"`
}

// InputConfig holds input file defaults from the config file.
type InputConfig struct {
	Path      string `yaml:"path"`
	Delimiter string `yaml:"delimiter"`
	SkipBlank *bool  `yaml:"skip_blank,omitempty"`
}

// RedisConfig holds the Redis source defaults from the config file.
type RedisConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// AdapterConfig holds completion adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// SkipBlankLines reports whether blank input lines should be dropped.
// The default is to drop them; an explicit skip_blank: false keeps them.
func (c *Config) SkipBlankLines() bool {
	if c.Input.SkipBlank == nil {
		return true
	}
	return *c.Input.SkipBlank
}
