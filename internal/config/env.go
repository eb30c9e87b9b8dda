package config

import "os"

// ApplyEnv applies OPGUARD_* environment variables to cfg. They override the
// file but not flags in changed.
func ApplyEnv(cfg *Config, changed map[string]bool) error {
	s := newSetter(changed)

	s.setString("listen", os.Getenv("OPGUARD_LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("probe", os.Getenv("OPGUARD_PROBE_KIND"), &cfg.ProbeKind)
	s.setString("probe-target", os.Getenv("OPGUARD_PROBE_TARGET"), &cfg.ProbeTarget)
	s.setString("session-token", os.Getenv("OPGUARD_SESSION_TOKEN"), &cfg.SessionToken)
	s.setString("session-key", os.Getenv("OPGUARD_SESSION_KEY"), &cfg.SessionKey)
	s.setString("service-name", os.Getenv("OPGUARD_SERVICE_NAME"), &cfg.ServiceName)
	s.setString("log-level", os.Getenv("OPGUARD_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("tracing-exporter", os.Getenv("OPGUARD_TRACING_EXPORTER"), &cfg.TracingExporter)
	s.setString("metrics-exporter", os.Getenv("OPGUARD_METRICS_EXPORTER"), &cfg.MetricsExporter)

	if err := s.setDuration("probe-timeout", os.Getenv("OPGUARD_PROBE_TIMEOUT"), &cfg.ProbeTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-timeout", os.Getenv("OPGUARD_RECONNECT_TIMEOUT"), &cfg.ReconnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("default-deadline", os.Getenv("OPGUARD_DEFAULT_DEADLINE"), &cfg.DefaultDeadline); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("OPGUARD_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	return s.setIntFromString("workers", os.Getenv("OPGUARD_WORKERS"), &cfg.Workers)
}
