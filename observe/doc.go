// Package observe provides observability primitives for guarded executions.
//
// It covers structured logging (zerolog), execution metrics and spans
// (OpenTelemetry) and exporter setup. The coordinator reports every outcome
// through a Recorder; embedding services build one from an Observer.
package observe
