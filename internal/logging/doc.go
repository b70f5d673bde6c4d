// Package logging assembles structured slog loggers and formatting helpers used
// across ignite components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so bootstrap code can tag log
// lines with step names, attempt identifiers, and the trigger that started an
// attempt. Per-component level overrides, session identifiers, and log
// retention live here too. The package also provides a no-op logger for tests
// and wiring code that cannot fail.
package logging
