// Package logging assembles the structured slog loggers used across
// transmirror components.
//
// It centralizes level and output plumbing and exposes typed attribute helpers
// plus shared field names so reconciliation, executor, and CLI code emit log
// lines with a consistent shape. Prefer these constructors over hand-rolled
// slog setup.
package logging
