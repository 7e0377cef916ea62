package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shadowplay/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start mirroring (launches the daemon if needed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			client, err := ctx.dialClient()
			if err != nil {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
				if client, err = launchDaemon(ctx, 10*time.Second); err != nil {
					return err
				}
			}
			defer client.Close()

			resp, err := client.Start()
			if err != nil {
				return fmt.Errorf("start mirroring: %w", err)
			}
			if !resp.Started {
				if strings.TrimSpace(resp.Message) != "" {
					fmt.Fprintln(stdout, resp.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Mirroring already running")
				return nil
			}
			fmt.Fprintln(stdout, "Mirroring started")
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop mirroring and release the local player",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			err := ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(stdout, "Mirroring stopped")
				return nil
			})
			if err != nil && strings.Contains(err.Error(), "not found") {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			return err
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and playback status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				runningKind := statusWarn
				runningDetail := "idle"
				if resp.Running {
					runningKind = statusOK
					runningDetail = fmt.Sprintf("mirroring (pid %d)", resp.PID)
				}
				fmt.Fprintln(stdout, renderStatusLine("Mirroring", runningKind, runningDetail, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Identity cache", statusInfo,
					fmt.Sprintf("%d entries, %d resolved (%s)", resp.CacheTotal, resp.CacheResolved, resp.IdentityDBPath), colorize))

				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Playback", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range playbackLines(resp, colorize) {
					fmt.Fprintln(stdout, line)
				}
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func playbackLines(resp *ipc.StatusResponse, colorize bool) []string {
	snap := resp.Snapshot
	if !snap.Watching {
		lines := []string{renderStatusLine("Session", statusInfo, "nothing playing remotely", colorize)}
		if strings.TrimSpace(snap.LastError) != "" {
			lines = append(lines, renderStatusLine("Last error", statusError, snap.LastError, colorize))
		}
		return lines
	}

	episode := ""
	if snap.Season > 0 || snap.Episode > 0 {
		episode = fmt.Sprintf("S%02dE%02d", snap.Season, snap.Episode)
	}
	if strings.TrimSpace(snap.EpisodeTitle) != "" {
		episode = strings.TrimSpace(episode + " " + snap.EpisodeTitle)
	}

	state := snap.PlayerState
	if snap.Paused {
		state += " (paused)"
	}

	lines := []string{
		renderStatusLine("Series", statusOK, snap.SeriesTitle, colorize),
	}
	if episode != "" {
		lines = append(lines, renderStatusLine("Episode", statusInfo, episode, colorize))
	}
	if snap.User != "" {
		lines = append(lines, renderStatusLine("Remote user", statusInfo, snap.User, colorize))
	}
	if snap.Source != "" {
		lines = append(lines, renderStatusLine("Identity", statusInfo, snap.Source+"/"+snap.SourceID, colorize))
	}
	lines = append(lines, renderStatusLine("Player", statusInfo, state, colorize))
	if snap.MediaPath != "" {
		lines = append(lines, renderStatusLine("Media", statusInfo, snap.MediaPath, colorize))
	}
	if strings.TrimSpace(snap.LastError) != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, snap.LastError, colorize))
	}
	return lines
}

// launchDaemon spawns this executable in hidden daemon mode and waits for
// the control socket to accept connections.
func launchDaemon(ctx *commandContext, timeout time.Duration) (*ipc.Client, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	args := []string{"daemon"}
	if ctx.configFlag != nil && strings.TrimSpace(*ctx.configFlag) != "" {
		args = append(args, "--config", *ctx.configFlag)
	}

	proc := exec.Command(exe, args...)
	proc.Stdout = nil
	proc.Stderr = nil
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("launch daemon: %w", err)
	}
	// Detach; the daemon manages its own lifecycle from here.
	if err := proc.Process.Release(); err != nil {
		return nil, fmt.Errorf("detach daemon (pid %d): %w", proc.Process.Pid, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		client, err := ipc.Dial(ctx.socketPath())
		if err == nil {
			return client, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("daemon did not come up within %s: %w", timeout, err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
