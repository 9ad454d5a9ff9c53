// Package telemetry groups the observability concerns of cantina.
//
// Currently it contains the logging subpackage, which configures the
// process-wide slog handler. Prometheus metrics live next to the code
// they measure in pkg/consumption and are served by `cantina run`.
package telemetry
