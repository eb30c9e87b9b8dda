package observe

import "errors"

var (
	ErrMissingServiceName     = errors.New("observe: service name is required")
	ErrInvalidSampleRatio     = errors.New("observe: sample ratio must be between 0.0 and 1.0")
	ErrInvalidTracingExporter = errors.New("observe: invalid tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: invalid metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: invalid log level")

	// ErrNilObserver is returned by RecorderFromObserver for a nil Observer.
	ErrNilObserver = errors.New("observe: observer is nil")
)

// Exporter and level names accepted by Config. The empty string selects the
// default.
var (
	ValidTracingExporters = []string{"otlp", "stdout", "none", ""}
	ValidMetricsExporters = []string{"otlp", "prometheus", "stdout", "none", ""}
	ValidLogLevels        = []string{"debug", "info", "warn", "error", ""}
)

// RedactedFields lists log field keys whose values are masked. Session
// probes carry bearer tokens.
var RedactedFields = []string{
	"password",
	"secret",
	"token",
	"session_token",
	"session_key",
	"credential",
}
