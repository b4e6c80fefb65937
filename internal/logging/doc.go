// Package logging builds the slog loggers shared by the daemon, worker pool,
// and CLI, and exposes the attribute helpers and field-name constants used
// for structured output across components.
package logging
