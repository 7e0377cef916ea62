// Package mirror runs the reconciliation loop: observe the remote Plex
// session, resolve the series identity, and drive the local player so its
// state converges on the remote one. Each cycle is independent; transient
// failures surface in the published snapshot and the next cycle retries.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"shadowplay/internal/config"
	"shadowplay/internal/logging"
	"shadowplay/internal/mediapath"
	"shadowplay/internal/notifications"
	"shadowplay/internal/panel"
	"shadowplay/internal/player"
	"shadowplay/internal/resolver"
	"shadowplay/internal/services/plex"
)

// SessionSource observes remote playback.
type SessionSource interface {
	ActiveSession(ctx context.Context) (*plex.Session, error)
}

// IdentityResolver maps library folders to catalog identities.
type IdentityResolver interface {
	Resolve(ctx context.Context, folderName, folderPath string) (resolver.Result, error)
}

// PlayerController drives the local player.
type PlayerController interface {
	Play(ctx context.Context, mediaPath string) error
	SetPaused(ctx context.Context, paused bool) error
	Stop(ctx context.Context) error
	Status() player.Status
	Healthy(ctx context.Context) bool
}

// PathMapper translates remote paths and locates episode files.
type PathMapper interface {
	ToLocal(remotePath string) (string, error)
	SeriesFolder(remotePath string) (name string, localDir string, err error)
}

// Deps bundles the mirror's collaborators.
type Deps struct {
	Sessions SessionSource
	Resolver IdentityResolver
	Player   PlayerController
	Mapper   PathMapper
	Hub      *panel.Hub
	Notifier notifications.Service
	CoverDir string
}

// Mirror reconciles local player state with the remote session.
type Mirror struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Deps

	findEpisode func(dir string, season, episode int) (string, error)
	fileExists  func(path string) bool

	cycle      int
	lastPath   string
	lastSeries string
}

// New creates a mirror. Deps.Sessions, Deps.Resolver, Deps.Player, and
// Deps.Mapper are required.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Mirror, error) {
	if deps.Sessions == nil || deps.Resolver == nil || deps.Player == nil || deps.Mapper == nil {
		return nil, fmt.Errorf("mirror: missing dependencies")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Hub == nil {
		deps.Hub = panel.NewHub()
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(cfg)
	}
	return &Mirror{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "mirror"),
		deps:        deps,
		findEpisode: mediapath.FindEpisode,
		fileExists: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && !info.IsDir()
		},
	}, nil
}

// Run polls until the context is cancelled, then tears the player down.
func (m *Mirror) Run(ctx context.Context) error {
	interval := time.Duration(m.cfg.Sync.PollInterval) * time.Second
	if interval <= 0 {
		interval = 3 * time.Second
	}

	m.logger.Info("reconciliation loop started",
		logging.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case <-ticker.C:
			m.Cycle(ctx)
		}
	}
}

// Cycle performs one observe-resolve-drive pass.
func (m *Mirror) Cycle(ctx context.Context) {
	m.cycle++

	sessionCtx, cancel := context.WithTimeout(ctx, m.sessionTimeout())
	session, err := m.deps.Sessions.ActiveSession(sessionCtx)
	cancel()
	if err != nil {
		m.logger.Warn("session poll failed",
			logging.Int(logging.FieldCycle, m.cycle),
			logging.Error(err))
		m.publishError(fmt.Sprintf("plex: %v", err))
		return
	}

	if session == nil {
		m.reconcileIdle(ctx)
		return
	}
	m.reconcileSession(ctx, session)
}

func (m *Mirror) reconcileIdle(ctx context.Context) {
	status := m.deps.Player.Status()
	if status.State != player.StateAbsent {
		m.logger.Info("remote session ended, stopping player",
			logging.String(logging.FieldSeries, m.lastSeries))
		if err := m.deps.Player.Stop(ctx); err != nil {
			m.logger.Warn("player stop failed", logging.Error(err))
		}
		if m.lastSeries != "" {
			_ = m.deps.Notifier.NotifyPlaybackStopped(ctx, m.lastSeries)
		}
	}
	m.lastPath = ""
	m.lastSeries = ""
	m.deps.Hub.Publish(panel.Snapshot{Watching: false, PlayerState: player.StateAbsent.String()})
}

func (m *Mirror) reconcileSession(ctx context.Context, session *plex.Session) {
	if session.FilePath == "" {
		m.publishError("session reports no file path")
		return
	}

	folderName, localDir, err := m.deps.Mapper.SeriesFolder(session.FilePath)
	if err != nil {
		m.logger.Warn("unmapped session path",
			logging.String(logging.FieldMediaPath, session.FilePath),
			logging.Error(err))
		m.publishError(fmt.Sprintf("path mapping: %v", err))
		return
	}

	// The resolver bounds each catalog query itself; no extra deadline here.
	result, err := m.deps.Resolver.Resolve(ctx, folderName, localDir)
	if err != nil {
		// Identity is for display; playback proceeds without it.
		m.logger.Warn("identity resolution failed",
			logging.String(logging.FieldFolder, folderName),
			logging.Error(err))
	} else if !result.FromCache {
		if result.Record.Resolved {
			_ = m.deps.Notifier.NotifySeriesResolved(ctx, result.Record.Title, result.Record.Source)
		} else {
			_ = m.deps.Notifier.NotifySeriesUnresolved(ctx, folderName)
		}
	}

	localPath, err := m.locateMedia(session, localDir)
	if err != nil {
		m.logger.Warn("no local media file",
			logging.String(logging.FieldMediaPath, session.FilePath),
			logging.Error(err))
		m.publishError(fmt.Sprintf("media: %v", err))
		return
	}

	// Probe an unchanged player before trusting it. Play only notices a dead
	// process; a live process with a wedged IPC socket needs a relaunch too.
	if localPath == m.lastPath && !m.deps.Player.Healthy(ctx) {
		m.logger.Warn("player unresponsive, relaunching",
			logging.String(logging.FieldMediaPath, localPath))
		_ = m.deps.Player.Stop(ctx)
	}

	series := displaySeries(result.Record.Title, session.SeriesTitle, folderName)
	if err := m.deps.Player.Play(ctx, localPath); err != nil {
		m.logger.Error("player start failed",
			logging.String(logging.FieldMediaPath, localPath),
			logging.Error(err))
		_ = m.deps.Notifier.NotifyError(ctx, err, "player")
		m.publishError(fmt.Sprintf("player: %v", err))
		return
	}

	if localPath != m.lastPath {
		m.logger.Info("mirroring playback",
			logging.String(logging.FieldSeries, series),
			logging.String(logging.FieldMediaPath, localPath))
		_ = m.deps.Notifier.NotifyPlaybackStarted(ctx, series, session.EpisodeTitle)
		m.lastPath = localPath
		m.lastSeries = series
	}

	if err := m.deps.Player.SetPaused(ctx, !session.Playing()); err != nil {
		m.logger.Debug("pause mirror skipped", logging.Error(err))
	}

	m.publishSession(session, result, series, localPath)
}

// locateMedia maps the remote file path directly; when the mapped file does
// not exist (different naming between machines) it falls back to scanning
// the series folder for the episode.
func (m *Mirror) locateMedia(session *plex.Session, localDir string) (string, error) {
	direct, err := m.deps.Mapper.ToLocal(session.FilePath)
	if err == nil && m.fileExists(direct) {
		return direct, nil
	}

	found, findErr := m.findEpisode(localDir, session.Season, session.Episode)
	if findErr != nil {
		if err != nil {
			return "", err
		}
		return "", findErr
	}
	return found, nil
}

func (m *Mirror) shutdown() {
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.deps.Player.Stop(stopCtx); err != nil {
		m.logger.Warn("player stop on shutdown failed", logging.Error(err))
	}
	m.deps.Hub.Publish(panel.Snapshot{Watching: false, PlayerState: player.StateAbsent.String()})
	m.logger.Info("reconciliation loop stopped")
}

func (m *Mirror) publishSession(session *plex.Session, result resolver.Result, series, localPath string) {
	status := m.deps.Player.Status()
	snapshot := panel.Snapshot{
		Watching:     true,
		User:         session.User,
		SeriesTitle:  series,
		EpisodeTitle: session.EpisodeTitle,
		Season:       session.Season,
		Episode:      session.Episode,
		Source:       result.Record.Source,
		SourceID:     result.Record.SourceID,
		Synopsis:     result.Record.Synopsis,
		MediaPath:    localPath,
		PlayerState:  status.State.String(),
		Paused:       status.Paused,
	}
	if result.Record.CoverFile != "" && m.deps.CoverDir != "" {
		snapshot.CoverPath = filepath.Join(m.deps.CoverDir, result.Record.CoverFile)
	}
	m.deps.Hub.Publish(snapshot)
}

func (m *Mirror) publishError(message string) {
	status := m.deps.Player.Status()
	m.deps.Hub.Publish(panel.Snapshot{
		Watching:    status.State != player.StateAbsent,
		MediaPath:   status.Path,
		PlayerState: status.State.String(),
		Paused:      status.Paused,
		LastError:   message,
	})
}

func (m *Mirror) sessionTimeout() time.Duration {
	if m.cfg.Sync.SessionTimeout > 0 {
		return time.Duration(m.cfg.Sync.SessionTimeout) * time.Second
	}
	return 5 * time.Second
}

func displaySeries(resolved, sessionTitle, folder string) string {
	if resolved != "" {
		return resolved
	}
	if sessionTitle != "" {
		return sessionTitle
	}
	return folder
}
