// Package logging wires slog with the handlers and shared attribute keys
// used throughout shadowplay. The console handler renders compact
// human-readable lines; the JSON handler is intended for file output and
// log shippers.
package logging
