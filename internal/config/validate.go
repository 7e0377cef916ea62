package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Validation failures are fatal
// at startup; nothing here is retried.
func (c *Config) Validate() error {
	if err := c.validatePlex(); err != nil {
		return err
	}
	if err := c.validatePathMap(); err != nil {
		return err
	}
	if err := c.validateTVDB(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePlex() error {
	if c.Plex.URL == "" {
		return errors.New("plex.url must be set")
	}
	if !strings.HasPrefix(c.Plex.URL, "http://") && !strings.HasPrefix(c.Plex.URL, "https://") {
		return fmt.Errorf("plex.url %q must start with http:// or https://", c.Plex.URL)
	}
	if c.Plex.Token == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/shadowplay/config.toml"
		}
		return fmt.Errorf("plex.token is required. Set PLEX_TOKEN env var or edit %s (create with 'shadowplay config init')", defaultPath)
	}
	if c.Plex.Username == "" {
		return errors.New("plex.username must be set")
	}
	if len(c.Plex.LibraryNames) == 0 {
		return errors.New("plex.library_names must include at least one library")
	}
	return nil
}

func (c *Config) validatePathMap() error {
	if len(c.PathMap) == 0 {
		return errors.New("path_map must include at least one remote/local mapping")
	}
	return nil
}

func (c *Config) validateTVDB() error {
	if !c.TVDB.Enabled {
		return nil
	}
	if c.TVDB.APIKey == "" {
		return errors.New("tvdb.api_key must be set when tvdb.enabled is true (or set TVDB_API_KEY)")
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.AcceptThreshold < 0 || c.Matching.AcceptThreshold > 1 {
		return errors.New("matching.accept_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateSync() error {
	for key, value := range map[string]int{
		"sync.poll_interval":            c.Sync.PollInterval,
		"sync.catalog_timeout":          c.Sync.CatalogTimeout,
		"sync.session_timeout":          c.Sync.SessionTimeout,
		"player.connect_retries":        c.Player.ConnectRetries,
		"player.connect_backoff_ms":     c.Player.ConnectBackoff,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
