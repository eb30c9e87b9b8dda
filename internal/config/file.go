package config

import (
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// File mirrors Config but uses strings for durations to make TOML friendly.
type File struct {
	ListenAddr       string `toml:"listen_addr"`
	ProbeKind        string `toml:"probe_kind"`
	ProbeTarget      string `toml:"probe_target"`
	SessionToken     string `toml:"session_token"`
	SessionKey       string `toml:"session_key"`
	ProbeTimeout     string `toml:"probe_timeout"`
	ReconnectTimeout string `toml:"reconnect_timeout"`
	Workers          int    `toml:"workers"`
	DefaultDeadline  string `toml:"default_deadline"`
	ShutdownTimeout  string `toml:"shutdown_timeout"`
	ServiceName      string `toml:"service_name"`
	LogLevel         string `toml:"log_level"`
	TracingExporter  string `toml:"tracing_exporter"`
	MetricsExporter  string `toml:"metrics_exporter"`
}

// LoadFile reads and parses a TOML config file from the given path.
func LoadFile(path string) (File, error) {
	var fc File
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// ApplyFile applies configuration from a file to cfg. Values whose flag is
// in changed are left alone.
func ApplyFile(cfg *Config, fc File, changed map[string]bool) error {
	s := newSetter(changed)

	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("probe", fc.ProbeKind, &cfg.ProbeKind)
	s.setString("probe-target", fc.ProbeTarget, &cfg.ProbeTarget)
	s.setString("session-token", fc.SessionToken, &cfg.SessionToken)
	s.setString("session-key", fc.SessionKey, &cfg.SessionKey)
	s.setString("service-name", fc.ServiceName, &cfg.ServiceName)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("tracing-exporter", fc.TracingExporter, &cfg.TracingExporter)
	s.setString("metrics-exporter", fc.MetricsExporter, &cfg.MetricsExporter)

	if err := s.setDuration("probe-timeout", fc.ProbeTimeout, &cfg.ProbeTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-timeout", fc.ReconnectTimeout, &cfg.ReconnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("default-deadline", fc.DefaultDeadline, &cfg.DefaultDeadline); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setInt("workers", fc.Workers, &cfg.Workers)

	return nil
}
