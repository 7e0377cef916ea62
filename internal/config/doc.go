// Package config loads, normalizes, and validates shadowplay's TOML
// configuration.
//
// Load resolves the config file (explicit path, then the default under
// ~/.config/shadowplay), layers it over repository defaults, expands every
// path field, and validates required settings. Configuration problems are
// surfaced once at startup with actionable messages; nothing in this package
// is retried at runtime.
package config
