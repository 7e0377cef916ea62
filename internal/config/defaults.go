package config

const (
	defaultStateDir             = "~/.local/share/shadowplay"
	defaultLogDir               = "~/.local/share/shadowplay/logs"
	defaultImageCacheDir        = "~/.cache/shadowplay/covers"
	defaultPlayerBinary         = "mpv"
	defaultPlayerSocket         = "/tmp/shadowplay-mpv.sock"
	defaultConnectRetries       = 10
	defaultConnectBackoffMillis = 250
	defaultAniListEndpoint      = "https://graphql.anilist.co"
	defaultAniListTimeout       = 6
	defaultTVDBBaseURL          = "https://api4.thetvdb.com/v4"
	defaultAcceptThreshold      = 0.6
	defaultPollInterval         = 3
	defaultCatalogTimeout       = 6
	defaultSessionTimeout       = 5
	defaultNtfyTimeout          = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:      defaultStateDir,
			LogDir:        defaultLogDir,
			ImageCacheDir: defaultImageCacheDir,
		},
		Player: Player{
			Binary:         defaultPlayerBinary,
			SocketPath:     defaultPlayerSocket,
			ConnectRetries: defaultConnectRetries,
			ConnectBackoff: defaultConnectBackoffMillis,
		},
		AniList: AniList{
			Endpoint:       defaultAniListEndpoint,
			RequestTimeout: defaultAniListTimeout,
		},
		TVDB: TVDB{
			BaseURL: defaultTVDBBaseURL,
		},
		Matching: Matching{
			AcceptThreshold: defaultAcceptThreshold,
		},
		Sync: Sync{
			PollInterval:   defaultPollInterval,
			CatalogTimeout: defaultCatalogTimeout,
			SessionTimeout: defaultSessionTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			Resolution:     true,
			Player:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
