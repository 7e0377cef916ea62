package player

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"shadowplay/internal/config"
	"shadowplay/internal/logging"
)

// State describes the controller's relationship to the player process.
type State int

const (
	// StateAbsent means no player process is owned.
	StateAbsent State = iota
	// StateLaunching means the process started but the IPC socket has not
	// answered yet.
	StateLaunching
	// StateAttached means commands flow over the IPC socket.
	StateAttached
	// StateTerminating means a shutdown is in progress.
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateLaunching:
		return "launching"
	case StateAttached:
		return "attached"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the controller for the watch panel and IPC.
type Status struct {
	State  State
	Path   string
	Paused bool
	PID    int
}

// Controller owns at most one mpv process and drives it over JSON IPC. All
// methods are safe for concurrent use.
type Controller struct {
	cfg    config.Player
	logger *slog.Logger
	launch LaunchFunc
	dial   DialFunc

	mu     sync.Mutex
	state  State
	handle Handle
	conn   *mpvConn
	path   string
	paused bool
}

// Option customises the Controller.
type Option func(*Controller)

// WithLauncher overrides process launching (primarily for tests).
func WithLauncher(launch LaunchFunc) Option {
	return func(c *Controller) {
		if launch != nil {
			c.launch = launch
		}
	}
}

// WithDialer overrides socket dialing (primarily for tests).
func WithDialer(dial DialFunc) Option {
	return func(c *Controller) {
		if dial != nil {
			c.dial = dial
		}
	}
}

// New creates a controller. No process is started until Play is called.
func New(cfg config.Player, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Controller{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "player"),
		launch: launchProcess,
		dial:   dialSocket,
		state:  StateAbsent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := Status{State: c.state, Path: c.path, Paused: c.paused}
	if c.handle != nil {
		status.PID = c.handle.PID()
	}
	return status
}

// Play ensures the player is running and showing the given file. Requesting
// the path that is already loaded is a no-op; a different path is swapped in
// with loadfile instead of restarting the process.
func (c *Controller) Play(ctx context.Context, mediaPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateAttached && !c.handle.Alive() {
		c.logger.Warn("player process died, relaunching",
			logging.String(logging.FieldMediaPath, c.path))
		c.teardownLocked()
	}

	if c.state == StateAttached {
		if c.path == mediaPath {
			return nil
		}
		if err := c.conn.loadFile(ctx, mediaPath); err != nil {
			c.logger.Warn("loadfile failed, relaunching", logging.Error(err))
			c.teardownLocked()
		} else {
			c.path = mediaPath
			c.paused = false
			c.logger.Info("switched media",
				logging.String(logging.FieldMediaPath, mediaPath))
			return nil
		}
	}

	return c.startLocked(ctx, mediaPath)
}

// SetPaused mirrors the remote pause state onto the local player.
func (c *Controller) SetPaused(ctx context.Context, paused bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAttached {
		return errNotAttached
	}
	if c.paused == paused {
		return nil
	}
	if err := c.conn.setPause(ctx, paused); err != nil {
		return fmt.Errorf("set pause: %w", err)
	}
	c.paused = paused
	c.logger.Debug("pause state mirrored", logging.Bool("paused", paused))
	return nil
}

// Stop shuts the player down: a polite quit over IPC first, then SIGTERM,
// then SIGKILL. Stopping an absent player is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateAbsent {
		return nil
	}
	c.state = StateTerminating

	if c.conn != nil {
		quitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_ = c.conn.quit(quitCtx)
		cancel()
	}

	handle := c.handle
	if handle != nil && handle.Alive() {
		if !waitGone(handle, 3*time.Second) {
			c.logger.Warn("player ignored quit, sending SIGTERM")
			_ = handle.Terminate()
			if !waitGone(handle, 2*time.Second) {
				c.logger.Warn("player ignored SIGTERM, sending SIGKILL")
				_ = handle.Kill()
			}
		}
	}

	c.teardownLocked()
	c.logger.Info("player stopped")
	return nil
}

// Healthy reports whether an attached player still answers on the socket.
func (c *Controller) Healthy(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAttached || c.conn == nil {
		return false
	}
	if !c.handle.Alive() {
		return false
	}
	return c.conn.ping(ctx) == nil
}

func (c *Controller) startLocked(ctx context.Context, mediaPath string) error {
	// A stale socket from a crashed player blocks the new instance.
	_ = os.Remove(c.cfg.SocketPath)

	args := c.buildArgs(mediaPath)
	handle, err := c.launch(ctx, c.cfg.Binary, args)
	if err != nil {
		return fmt.Errorf("launch player: %w", err)
	}
	c.handle = handle
	c.state = StateLaunching
	c.logger.Info("player launched",
		logging.Int("pid", handle.PID()),
		logging.String(logging.FieldMediaPath, mediaPath))

	conn, err := c.connectLocked(ctx)
	if err == nil {
		if pingErr := conn.ping(ctx); pingErr != nil {
			_ = conn.close()
			err = pingErr
		}
	}
	if err != nil {
		_ = handle.Kill()
		c.handle = nil
		c.state = StateAbsent
		return fmt.Errorf("attach to player: %w", err)
	}

	c.conn = conn
	c.state = StateAttached
	c.path = mediaPath
	c.paused = false
	return nil
}

func (c *Controller) connectLocked(ctx context.Context) (*mpvConn, error) {
	retries := c.cfg.ConnectRetries
	if retries <= 0 {
		retries = 10
	}
	backoff := time.Duration(c.cfg.ConnectBackoff) * time.Millisecond
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		conn, err := c.dial(ctx, c.cfg.SocketPath)
		if err != nil {
			lastErr = err
			continue
		}
		return newMPVConn(conn), nil
	}
	return nil, fmt.Errorf("socket %s never answered: %w", c.cfg.SocketPath, lastErr)
}

func (c *Controller) buildArgs(mediaPath string) []string {
	args := []string{
		"--input-ipc-server=" + c.cfg.SocketPath,
		"--force-window=yes",
		"--geometry=1x1+0+0",
		"--mute=yes",
		"--no-terminal",
	}
	args = append(args, c.cfg.ExtraArgs...)
	args = append(args, mediaPath)
	return args
}

func (c *Controller) teardownLocked() {
	if c.conn != nil {
		_ = c.conn.close()
		c.conn = nil
	}
	c.handle = nil
	c.state = StateAbsent
	c.path = ""
	c.paused = false
}

func waitGone(handle Handle, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !handle.Alive() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return !handle.Alive()
}
