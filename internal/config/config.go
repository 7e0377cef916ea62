package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Plex contains connection settings for the remote media server.
type Plex struct {
	URL          string   `toml:"url"`
	Token        string   `toml:"token"`
	Username     string   `toml:"username"`
	LibraryNames []string `toml:"library_names"`
}

// Paths contains directory configuration.
type Paths struct {
	StateDir      string `toml:"state_dir"`
	LogDir        string `toml:"log_dir"`
	ImageCacheDir string `toml:"image_cache_dir"`
}

// PathMapping translates one remote library root to a local mount point.
type PathMapping struct {
	Remote string `toml:"remote"`
	Local  string `toml:"local"`
}

// Player contains configuration for the local mpv instance.
type Player struct {
	Binary         string   `toml:"binary"`
	SocketPath     string   `toml:"socket_path"`
	ExtraArgs      []string `toml:"extra_args"`
	ConnectRetries int      `toml:"connect_retries"`
	ConnectBackoff int      `toml:"connect_backoff_ms"`
}

// AniList contains configuration for the primary metadata catalog.
type AniList struct {
	Endpoint       string `toml:"endpoint"`
	RequestTimeout int    `toml:"request_timeout"`
}

// TVDB contains configuration for the optional secondary catalog.
type TVDB struct {
	Enabled bool   `toml:"enabled"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// Matching contains title comparison tuning.
type Matching struct {
	AcceptThreshold float64 `toml:"accept_threshold"`
}

// Sync contains reconciliation loop timing.
type Sync struct {
	PollInterval   int `toml:"poll_interval"`
	CatalogTimeout int `toml:"catalog_timeout"`
	SessionTimeout int `toml:"session_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Resolution     bool   `toml:"resolution"`
	Player         bool   `toml:"player"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shadowplay.
//
// Configuration sections by subsystem:
//   - Plex: remote session source connection and user/library filter
//   - Paths: state, log, and image cache directories
//   - PathMap: remote file reference to local filesystem translation
//   - Player: mpv binary, IPC socket, launch behavior
//   - AniList: primary metadata catalog
//   - TVDB: optional secondary metadata catalog
//   - Matching: title acceptance threshold
//   - Sync: poll interval and per-call timeouts
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Plex          Plex          `toml:"plex"`
	Paths         Paths         `toml:"paths"`
	PathMap       []PathMapping `toml:"path_map"`
	Player        Player        `toml:"player"`
	AniList       AniList       `toml:"anilist"`
	TVDB          TVDB          `toml:"tvdb"`
	Matching      Matching      `toml:"matching"`
	Sync          Sync          `toml:"sync"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shadowplay/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shadowplay.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.ImageCacheDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// IdentityDBPath returns the location of the folder identity database.
func (c *Config) IdentityDBPath() string {
	return filepath.Join(c.Paths.StateDir, "identities.db")
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "shadowplay.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "shadowplayd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
