package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the deployment the entry document was saved from.
const DefaultBaseURL = "https://seohee-unjeong.kr/"

type Config struct {
	Input          string        `yaml:"input"`
	OutputDir      string        `yaml:"output"`
	LogsDir        string        `yaml:"logs"`
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	Delay          time.Duration `yaml:"delay"`
	Concurrency    int           `yaml:"workers"`
	UserAgent      string        `yaml:"user_agent"`
	ReportFormat   string        `yaml:"format"`
	MigrationNotes string        `yaml:"migration_notes"` // legacy top-level summary, empty to skip
	Database       string        `yaml:"db"`              // SQLite run history, empty to skip
	Verbose        bool          `yaml:"verbose"`
	Silent         bool          `yaml:"quiet"`
}

func NewConfig() *Config {
	return &Config{
		Input:        "www/index.html",
		OutputDir:    "www/assets",
		LogsDir:      "logs",
		BaseURL:      DefaultBaseURL,
		Timeout:      30 * time.Second,
		Delay:        50 * time.Millisecond,
		Concurrency:  1,
		ReportFormat: "json",
	}
}

// LoadFile overlays the YAML file at path onto c. Keys missing from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks ranges. The base URL resolves like a browser base: it is kept
// as given, and only an empty path becomes "/".
func (c *Config) Validate() error {
	if c.Input == "" {
		return errors.New("input document is required")
	}
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if c.LogsDir == "" {
		c.LogsDir = "logs"
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base url must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	c.BaseURL = u.String()

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %s", c.Delay)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Concurrency)
	}

	switch strings.ToLower(c.ReportFormat) {
	case "json", "yaml", "yml":
		c.ReportFormat = strings.ToLower(c.ReportFormat)
	default:
		return fmt.Errorf("unsupported report format %q", c.ReportFormat)
	}
	return nil
}
