// Package notifications pushes daemon events to ntfy. Without a configured
// topic every notification is a no-op.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shadowplay/internal/config"
)

const userAgent = "shadowplay/1.0"

// Service defines the notification surface exposed to daemon components.
type Service interface {
	NotifySeriesResolved(ctx context.Context, title, source string) error
	NotifySeriesUnresolved(ctx context.Context, folder string) error
	NotifyPlaybackStarted(ctx context.Context, series, episode string) error
	NotifyPlaybackStopped(ctx context.Context, series string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		resolution: cfg.Notifications.Resolution,
		player:     cfg.Notifications.Player,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	resolution bool
	player     bool
	errors     bool
}

func (n *ntfyService) NotifySeriesResolved(ctx context.Context, title, source string) error {
	if !n.resolution {
		return nil
	}
	data := payload{
		title:   "Shadowplay - Series Resolved",
		message: fmt.Sprintf("Matched %s via %s", strings.TrimSpace(title), strings.TrimSpace(source)),
		tags:    []string{"shadowplay", "resolve"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySeriesUnresolved(ctx context.Context, folder string) error {
	if !n.resolution {
		return nil
	}
	data := payload{
		title:   "Shadowplay - Unresolved Folder",
		message: fmt.Sprintf("No catalog match for %s", strings.TrimSpace(folder)),
		tags:    []string{"shadowplay", "resolve", "miss"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPlaybackStarted(ctx context.Context, series, episode string) error {
	if !n.player {
		return nil
	}
	message := fmt.Sprintf("Mirroring %s", strings.TrimSpace(series))
	if episode = strings.TrimSpace(episode); episode != "" {
		message = fmt.Sprintf("Mirroring %s - %s", strings.TrimSpace(series), episode)
	}
	data := payload{
		title:   "Shadowplay - Playback Started",
		message: message,
		tags:    []string{"shadowplay", "playback"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPlaybackStopped(ctx context.Context, series string) error {
	if !n.player {
		return nil
	}
	data := payload{
		title:   "Shadowplay - Playback Stopped",
		message: fmt.Sprintf("Stopped mirroring %s", strings.TrimSpace(series)),
		tags:    []string{"shadowplay", "playback"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, context string) error {
	if !n.errors || err == nil {
		return nil
	}
	context = strings.TrimSpace(context)
	message := err.Error()
	if context != "" {
		message = fmt.Sprintf("%s: %s", context, message)
	}
	data := payload{
		title:    "Shadowplay - Error",
		message:  message,
		tags:     []string{"shadowplay", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Shadowplay - Test",
		message: "Test notification from shadowplay",
		tags:    []string{"shadowplay", "test"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySeriesResolved(context.Context, string, string) error  { return nil }
func (noopService) NotifySeriesUnresolved(context.Context, string) error        { return nil }
func (noopService) NotifyPlaybackStarted(context.Context, string, string) error { return nil }
func (noopService) NotifyPlaybackStopped(context.Context, string) error         { return nil }
func (noopService) NotifyError(context.Context, error, string) error            { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
