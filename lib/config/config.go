// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// DefaultBaseURL is the API address used when nothing else is configured.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Config is the client configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`

	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields an environment section may replace.
// Empty strings and nil pointers leave the base value alone.
type Overrides struct {
	API     *APIConfig     `yaml:"api,omitempty"`
	Session *SessionConfig `yaml:"session,omitempty"`
	Cache   *CacheOverride `yaml:"cache,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`
}

// APIConfig configures the Pony Express API endpoint.
type APIConfig struct {
	// BaseURL is prepended to every request path.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each request, as a Go duration string.
	// Default: 30s
	Timeout string `yaml:"timeout"`
}

// SessionConfig configures session persistence for the CLI.
type SessionConfig struct {
	// File is where the session credential is kept between invocations.
	// Empty selects the default (~/.config/pony/session.json or
	// PONY_SESSION_FILE).
	File string `yaml:"file"`
}

// CacheConfig configures the query cache.
type CacheConfig struct {
	// Retention is how long an unsubscribed entry survives, as a Go
	// duration string. "0s" evicts at the last unsubscribe.
	Retention string `yaml:"retention"`

	// Strict turns consistency violations into panics.
	Strict bool `yaml:"strict"`
}

// CacheOverride is CacheConfig with an optional Strict so that an
// environment section can switch it off.
type CacheOverride struct {
	Retention string `yaml:"retention"`
	Strict    *bool  `yaml:"strict"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is auto (text on a terminal, JSON otherwise), text or json.
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Environment: Development,
		API: APIConfig{
			BaseURL: "${PONY_API_BASE_URL:-" + DefaultBaseURL + "}",
			Timeout: "30s",
		},
		Cache: CacheConfig{
			Retention: "0s",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by PONY_CONFIG, or returns the expanded
// defaults when it is unset.
func Load() (*Config, error) {
	path := os.Getenv("PONY_CONFIG")
	if path == "" {
		cfg := Default()
		cfg.applyEnvironmentOverrides()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, merged over Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so the stripped document decodes
		// through the same struct tags.
		data = jsonc.ToJSON(data)
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.API != nil {
		setIfPresent(&c.API.BaseURL, overrides.API.BaseURL)
		setIfPresent(&c.API.Timeout, overrides.API.Timeout)
	}
	if overrides.Session != nil {
		setIfPresent(&c.Session.File, overrides.Session.File)
	}
	if overrides.Cache != nil {
		setIfPresent(&c.Cache.Retention, overrides.Cache.Retention)
		if overrides.Cache.Strict != nil {
			c.Cache.Strict = *overrides.Cache.Strict
		}
	}
	if overrides.Log != nil {
		setIfPresent(&c.Log.Level, overrides.Log.Level)
		setIfPresent(&c.Log.Format, overrides.Log.Format)
	}
}

func setIfPresent(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.API.BaseURL = expandVars(c.API.BaseURL, vars)
	c.API.Timeout = expandVars(c.API.Timeout, vars)
	c.Session.File = expandVars(c.Session.File, vars)
	c.Cache.Retention = expandVars(c.Cache.Retention, vars)
	c.Log.Level = expandVars(c.Log.Level, vars)
	c.Log.Format = expandVars(c.Log.Format, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} and ${VAR:-default}. Entries in vars take
// precedence over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// RequestTimeout returns the parsed api.timeout. Call Validate first.
func (c *Config) RequestTimeout() time.Duration {
	d, _ := time.ParseDuration(c.API.Timeout)
	return d
}

// CacheRetention returns the parsed cache.retention. Call Validate first.
func (c *Config) CacheRetention() time.Duration {
	d, _ := time.ParseDuration(c.Cache.Retention)
	return d
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	} else if parsed, err := url.Parse(c.API.BaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, fmt.Errorf("api.base_url scheme must be http or https, got %q", parsed.Scheme))
	}

	if timeout, err := time.ParseDuration(c.API.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("api.timeout: %w", err))
	} else if timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout))
	}

	if retention, err := time.ParseDuration(c.Cache.Retention); err != nil {
		errs = append(errs, fmt.Errorf("cache.retention: %w", err))
	} else if retention < 0 {
		errs = append(errs, fmt.Errorf("cache.retention must not be negative, got %s", c.Cache.Retention))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}
	formats := []string{"auto", "text", "json"}
	if !contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	return errors.Join(errs...)
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
