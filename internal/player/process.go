package player

import (
	"context"
	"fmt"
	"net"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Handle controls a launched player process.
type Handle interface {
	PID() int
	Alive() bool
	Terminate() error
	Kill() error
}

// LaunchFunc starts the player binary. Replaced in tests.
type LaunchFunc func(ctx context.Context, binary string, args []string) (Handle, error)

// DialFunc connects to the player IPC socket. Replaced in tests.
type DialFunc func(ctx context.Context, socketPath string) (net.Conn, error)

type osHandle struct {
	cmd *exec.Cmd
}

func launchProcess(_ context.Context, binary string, args []string) (Handle, error) {
	cmd := exec.Command(binary, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}
	handle := &osHandle{cmd: cmd}
	// Reap the child so a crashed player never lingers as a zombie.
	go func() { _ = cmd.Wait() }()
	return handle, nil
}

func dialSocket(ctx context.Context, socketPath string) (net.Conn, error) {
	var dialer net.Dialer
	return dialer.DialContext(ctx, "unix", socketPath)
}

func (h *osHandle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Alive probes the process with signal 0.
func (h *osHandle) Alive() bool {
	pid := h.PID()
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

func (h *osHandle) Terminate() error {
	pid := h.PID()
	if pid <= 0 {
		return nil
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil && err != unix.ESRCH {
		return fmt.Errorf("signal player: %w", err)
	}
	return nil
}

func (h *osHandle) Kill() error {
	pid := h.PID()
	if pid <= 0 {
		return nil
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return fmt.Errorf("kill player: %w", err)
	}
	return nil
}
