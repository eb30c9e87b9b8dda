// Package config loads opguardd configuration from defaults, a TOML file,
// OPGUARD_* environment variables and command-line flags, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Probe kinds.
const (
	ProbeAlways  = "always"
	ProbeHTTP    = "http"
	ProbeDial    = "dial"
	ProbeSession = "session"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("config: invalid")

// Config holds opguardd configuration.
type Config struct {
	ListenAddr string

	// ProbeKind selects how the dependency is checked: always, http, dial
	// or session.
	ProbeKind string
	// ProbeTarget is the URL (http) or host:port (dial) to probe.
	ProbeTarget string
	// SessionToken and SessionKey configure the session probe.
	SessionToken string
	SessionKey   string

	ProbeTimeout     time.Duration
	ReconnectTimeout time.Duration

	Workers         int
	DefaultDeadline time.Duration
	ShutdownTimeout time.Duration

	ServiceName     string
	LogLevel        string
	TracingExporter string
	MetricsExporter string
}

// Default returns a Config with default values.
func Default() Config {
	return Config{
		ListenAddr:       ":8080",
		ProbeKind:        ProbeAlways,
		ProbeTimeout:     250 * time.Millisecond,
		ReconnectTimeout: 2 * time.Second,
		Workers:          1,
		DefaultDeadline:  5 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		ServiceName:      "opguardd",
		LogLevel:         "info",
		TracingExporter:  "none",
		MetricsExporter:  "prometheus",
	}
}

// DefaultPath returns ~/.opguard/config.toml, or "" if the home directory
// is unknown.
func DefaultPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".opguard", "config.toml")
	}
	return ""
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Expand resolves environment references in the probe target and session
// credentials. A referenced variable that is not set is an error naming the
// offending setting.
func (c *Config) Expand() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"probe_target", &c.ProbeTarget},
		{"session_token", &c.SessionToken},
		{"session_key", &c.SessionKey},
	}
	for _, f := range fields {
		v, err := expandEnv(f.name, *f.value)
		if err != nil {
			return err
		}
		*f.value = v
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen address is required", ErrInvalidConfig)
	}

	switch c.ProbeKind {
	case ProbeAlways:
	case ProbeHTTP, ProbeDial:
		if c.ProbeTarget == "" {
			return fmt.Errorf("%w: probe target is required for %s probes", ErrInvalidConfig, c.ProbeKind)
		}
	case ProbeSession:
		if c.SessionToken == "" || c.SessionKey == "" {
			return fmt.Errorf("%w: session probes need a token and a key", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown probe kind %q", ErrInvalidConfig, c.ProbeKind)
	}

	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("%w: probe timeout must be positive", ErrInvalidConfig)
	}
	if c.ReconnectTimeout <= 0 {
		return fmt.Errorf("%w: reconnect timeout must be positive", ErrInvalidConfig)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.DefaultDeadline <= 0 {
		return fmt.Errorf("%w: default deadline must be positive", ErrInvalidConfig)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	}

	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.SessionToken != "" {
		c.SessionToken = "*****"
	}
	if c.SessionKey != "" {
		c.SessionKey = "*****"
	}
	return c
}

// setter applies configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type setter struct {
	changed map[string]bool
}

func newSetter(changed map[string]bool) *setter {
	return &setter{changed: changed}
}

func (s *setter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *setter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *setter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString is used for environment variables, which arrive as
// strings.
func (s *setter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
