// Package daemonrun wires configuration, services, and the IPC server into a
// running shadowplay daemon process.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"shadowplay/internal/config"
	"shadowplay/internal/daemon"
	"shadowplay/internal/identity"
	"shadowplay/internal/images"
	"shadowplay/internal/ipc"
	"shadowplay/internal/logging"
	"shadowplay/internal/mediapath"
	"shadowplay/internal/mirror"
	"shadowplay/internal/notifications"
	"shadowplay/internal/panel"
	"shadowplay/internal/player"
	"shadowplay/internal/resolver"
	"shadowplay/internal/services/anilist"
	"shadowplay/internal/services/plex"
	"shadowplay/internal/services/tvdb"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	NoAutoStart bool
}

// Run starts the shadowplay daemon runtime loop. It blocks until the context
// is canceled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logPath := filepath.Join(cfg.Paths.LogDir, "shadowplay.log")
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	runID := uuid.NewString()
	logger = logger.With(logging.String(logging.FieldRunID, runID))
	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "shadowplayd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := identity.Open(cfg)
	if err != nil {
		logger.Error("open identity store", logging.Error(err))
		return err
	}
	defer store.Close()

	sessions := plex.NewClient(cfg)

	primary, err := anilist.New(cfg.AniList.Endpoint, time.Duration(cfg.AniList.RequestTimeout)*time.Second)
	if err != nil {
		return fmt.Errorf("init anilist client: %w", err)
	}

	covers := images.NewCache(cfg.Paths.ImageCacheDir, time.Duration(cfg.AniList.RequestTimeout)*time.Second)

	resolverOpts := []resolver.Option{
		resolver.WithCovers(covers),
		resolver.WithCatalogTimeout(time.Duration(cfg.Sync.CatalogTimeout) * time.Second),
	}
	if cfg.TVDB.Enabled {
		secondary, err := tvdb.New(cfg.TVDB.APIKey, cfg.TVDB.BaseURL, time.Duration(cfg.AniList.RequestTimeout)*time.Second)
		if err != nil {
			return fmt.Errorf("init tvdb client: %w", err)
		}
		resolverOpts = append(resolverOpts, resolver.WithSecondary(secondary))
	}
	res, err := resolver.New(store, primary, cfg.Matching.AcceptThreshold, logger, resolverOpts...)
	if err != nil {
		return fmt.Errorf("init resolver: %w", err)
	}

	controller := player.New(cfg.Player, logger)
	hub := panel.NewHub()
	notifier := notifications.NewService(cfg)

	m, err := mirror.New(cfg, logger, mirror.Deps{
		Sessions: sessions,
		Resolver: res,
		Player:   controller,
		Mapper:   mediapath.NewMapper(cfg.PathMap),
		Hub:      hub,
		Notifier: notifier,
		CoverDir: covers.Dir(),
	})
	if err != nil {
		return fmt.Errorf("init mirror: %w", err)
	}

	d, err := daemon.New(cfg, store, m, hub, notifier, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if !opts.NoAutoStart {
		if err := d.Start(signalCtx); err != nil {
			logger.Warn("mirror start failed",
				logging.Error(err),
				logging.String(logging.FieldEvent, "mirror_start_failed"),
			)
		}
	}

	<-signalCtx.Done()
	logger.Info("shadowplay daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEvent, "dependency_snapshot"),
		logging.Bool("plex_token_present", strings.TrimSpace(cfg.Plex.Token) != ""),
		logging.String("plex_url", cfg.Plex.URL),
		logging.Bool("mpv_available", binaryAvailable(cfg.Player.Binary)),
		logging.String("mpv_binary", cfg.Player.Binary),
		logging.Bool("tvdb_enabled", cfg.TVDB.Enabled),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Int("path_mappings", len(cfg.PathMap)),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
