package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizePathMap(); err != nil {
		return err
	}
	c.normalizePlex()
	c.normalizePlayer()
	c.normalizeCatalogs()
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ImageCacheDir) == "" {
		c.Paths.ImageCacheDir = defaultImageCacheDir
	}
	if c.Paths.ImageCacheDir, err = expandPath(c.Paths.ImageCacheDir); err != nil {
		return fmt.Errorf("paths.image_cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePathMap() error {
	for i := range c.PathMap {
		remote := strings.TrimSpace(c.PathMap[i].Remote)
		local := strings.TrimSpace(c.PathMap[i].Local)
		if remote == "" || local == "" {
			return fmt.Errorf("path_map[%d]: remote and local must both be set", i)
		}
		expanded, err := expandPath(local)
		if err != nil {
			return fmt.Errorf("path_map[%d].local: %w", i, err)
		}
		c.PathMap[i].Remote = remote
		c.PathMap[i].Local = expanded
	}
	return nil
}

func (c *Config) normalizePlex() {
	c.Plex.URL = strings.TrimRight(strings.TrimSpace(c.Plex.URL), "/")
	c.Plex.Token = strings.TrimSpace(c.Plex.Token)
	if c.Plex.Token == "" {
		if value, ok := os.LookupEnv("PLEX_TOKEN"); ok {
			c.Plex.Token = strings.TrimSpace(value)
		}
	}
	c.Plex.Username = strings.TrimSpace(c.Plex.Username)
	libraries := c.Plex.LibraryNames[:0]
	for _, name := range c.Plex.LibraryNames {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			libraries = append(libraries, trimmed)
		}
	}
	c.Plex.LibraryNames = libraries
}

func (c *Config) normalizePlayer() {
	c.Player.Binary = strings.TrimSpace(c.Player.Binary)
	if c.Player.Binary == "" {
		c.Player.Binary = defaultPlayerBinary
	}
	c.Player.SocketPath = strings.TrimSpace(c.Player.SocketPath)
	if c.Player.SocketPath == "" {
		c.Player.SocketPath = filepath.Join(os.TempDir(), "shadowplay-mpv.sock")
	}
	if c.Player.ConnectRetries <= 0 {
		c.Player.ConnectRetries = defaultConnectRetries
	}
	if c.Player.ConnectBackoff <= 0 {
		c.Player.ConnectBackoff = defaultConnectBackoffMillis
	}
}

func (c *Config) normalizeCatalogs() {
	c.AniList.Endpoint = strings.TrimSpace(c.AniList.Endpoint)
	if c.AniList.Endpoint == "" {
		c.AniList.Endpoint = defaultAniListEndpoint
	}
	if c.AniList.RequestTimeout <= 0 {
		c.AniList.RequestTimeout = defaultAniListTimeout
	}
	c.TVDB.APIKey = strings.TrimSpace(c.TVDB.APIKey)
	if c.TVDB.APIKey == "" {
		if value, ok := os.LookupEnv("TVDB_API_KEY"); ok {
			c.TVDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TVDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TVDB.BaseURL), "/")
	if c.TVDB.BaseURL == "" {
		c.TVDB.BaseURL = defaultTVDBBaseURL
	}
}

func (c *Config) normalizeSync() {
	if c.Matching.AcceptThreshold == 0 {
		c.Matching.AcceptThreshold = defaultAcceptThreshold
	}
	if c.Sync.PollInterval <= 0 {
		c.Sync.PollInterval = defaultPollInterval
	}
	if c.Sync.CatalogTimeout <= 0 {
		c.Sync.CatalogTimeout = defaultCatalogTimeout
	}
	if c.Sync.SessionTimeout <= 0 {
		c.Sync.SessionTimeout = defaultSessionTimeout
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
