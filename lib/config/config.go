// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable holding the config path
// when no --config flag is given.
const EnvConfig = "LITTLECI_CONFIG"

// Authentication modes accepted in the authentication field.
const (
	AuthenticationNone   = "none"
	AuthenticationSimple = "simple"
)

// Config is the configuration of a LittleCI server and the CLI
// commands that operate on its data directory.
type Config struct {
	// DataDir holds the database, job output, working directories
	// and signing keys. When empty it defaults to the directory
	// containing the config file, or ${HOME}/.local/share/littleci
	// when there is no file.
	DataDir string `yaml:"data_dir"`

	// SiteURL is the externally visible base URL, used for links in
	// outgoing webhooks.
	SiteURL string `yaml:"site_url"`

	// NetworkHost and Port form the HTTP listen address.
	NetworkHost string `yaml:"network_host"`
	Port        int    `yaml:"port"`

	// Authentication is "none" or "simple". Simple requires a bearer
	// token on the management API.
	Authentication string `yaml:"authentication"`

	// AdminSocket is the Unix socket the server answers local
	// administrative requests on. ${LITTLECI_DATA} expands to DataDir.
	AdminSocket string `yaml:"admin_socket"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Engine EngineConfig `yaml:"engine"`
	Tokens TokensConfig `yaml:"tokens"`
}

// EngineConfig configures the job engine.
type EngineConfig struct {
	// Workers is the number of jobs that may run at once across all
	// repositories. A repository never runs more than one.
	Workers int `yaml:"workers"`

	// PollInterval is how often idle workers look for queued jobs
	// when nothing wakes them.
	PollInterval time.Duration `yaml:"poll_interval"`

	// CancelGrace is how long a cancelled build has between SIGTERM
	// and SIGKILL.
	CancelGrace time.Duration `yaml:"cancel_grace"`

	// ShutdownTimeout is how long a stopping server waits for
	// running builds before abandoning them.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Shell runs each build as "<shell> -c <run>".
	Shell string `yaml:"shell"`
}

// TokensConfig configures session tokens.
type TokensConfig struct {
	Lifetime time.Duration `yaml:"lifetime"`
}

// Default returns the default configuration. A config file overrides
// any of these values.
func Default() *Config {
	return &Config{
		SiteURL:        "http://localhost:8000",
		NetworkHost:    "127.0.0.1",
		Port:           8000,
		Authentication: AuthenticationSimple,
		AdminSocket:    "${LITTLECI_DATA}/littleci.sock",
		LogLevel:       "info",
		Engine: EngineConfig{
			Workers:         1,
			PollInterval:    2 * time.Second,
			CancelGrace:     10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			Shell:           "/bin/sh",
		},
		Tokens: TokensConfig{
			Lifetime: 12 * time.Hour,
		},
	}
}

// Load resolves the configuration for a command. An explicit path
// (the --config flag) wins over LITTLECI_CONFIG. With neither, the
// defaults are used as-is.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		cfg := Default()
		cfg.finish("")
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, layered
// over Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	cfg.finish(filepath.Dir(absolute))
	return cfg, nil
}

// finish fills DataDir and expands variables in path fields.
// configDir is the directory of the loaded file, or empty.
func (c *Config) finish(configDir string) {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.DataDir = expandVars(c.DataDir, vars)
	if c.DataDir == "" {
		if configDir != "" {
			c.DataDir = configDir
		} else {
			c.DataDir = filepath.Join(vars["HOME"], ".local", "share", "littleci")
		}
	}
	if absolute, err := filepath.Abs(c.DataDir); err == nil {
		c.DataDir = absolute
	}
	vars["LITTLECI_DATA"] = c.DataDir // Update for dependent paths.

	c.AdminSocket = expandVars(c.AdminSocket, vars)
	c.Engine.Shell = expandVars(c.Engine.Shell, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// ListenAddress is the HTTP listen address.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.NetworkHost, strconv.Itoa(c.Port))
}

// Validate checks the configuration for errors. All problems are
// reported at once.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir is required"))
	}

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Port))
	}

	if c.NetworkHost == "" {
		errs = append(errs, fmt.Errorf("network_host is required"))
	}

	if siteURL, err := url.Parse(c.SiteURL); err != nil || (siteURL.Scheme != "http" && siteURL.Scheme != "https") || siteURL.Host == "" {
		errs = append(errs, fmt.Errorf("site_url %q must be an absolute http or https URL", c.SiteURL))
	}

	if c.Authentication != AuthenticationNone && c.Authentication != AuthenticationSimple {
		errs = append(errs, fmt.Errorf("authentication must be one of: %s, %s", AuthenticationNone, AuthenticationSimple))
	}

	if c.AdminSocket == "" {
		errs = append(errs, fmt.Errorf("admin_socket is required"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of: debug, info, warn, error"))
	}

	if c.Engine.Workers < 1 {
		errs = append(errs, fmt.Errorf("engine.workers must be at least 1"))
	}
	if c.Engine.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("engine.poll_interval must be positive"))
	}
	if c.Engine.CancelGrace <= 0 {
		errs = append(errs, fmt.Errorf("engine.cancel_grace must be positive"))
	}
	if c.Engine.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.shutdown_timeout must be positive"))
	}
	if c.Engine.Shell == "" {
		errs = append(errs, fmt.Errorf("engine.shell is required"))
	}

	if c.Tokens.Lifetime <= 0 {
		errs = append(errs, fmt.Errorf("tokens.lifetime must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
