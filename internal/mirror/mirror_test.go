package mirror

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"shadowplay/internal/config"
	"shadowplay/internal/identity"
	"shadowplay/internal/panel"
	"shadowplay/internal/player"
	"shadowplay/internal/resolver"
	"shadowplay/internal/services/plex"
)

type fakeSessions struct {
	mu      sync.Mutex
	session *plex.Session
	err     error
}

func (f *fakeSessions) set(session *plex.Session, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = session
	f.err = err
}

func (f *fakeSessions) ActiveSession(context.Context) (*plex.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.err
}

type fakeResolver struct {
	result resolver.Result
	err    error
	calls  int
}

func (f *fakeResolver) Resolve(_ context.Context, _, _ string) (resolver.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakePlayer struct {
	mu        sync.Mutex
	status    player.Status
	plays     []string
	pauses    []bool
	stops     int
	playErr   error
	pauseErr  error
	unhealthy bool
}

func (f *fakePlayer) Play(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.plays = append(f.plays, path)
	f.status = player.Status{State: player.StateAttached, Path: path}
	return nil
}

func (f *fakePlayer) SetPaused(_ context.Context, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pauseErr != nil {
		return f.pauseErr
	}
	f.pauses = append(f.pauses, paused)
	f.status.Paused = paused
	return nil
}

func (f *fakePlayer) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.status = player.Status{State: player.StateAbsent}
	return nil
}

func (f *fakePlayer) Healthy(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status.State == player.StateAttached && !f.unhealthy
}

func (f *fakePlayer) Status() player.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

type fakeMapper struct{}

func (fakeMapper) ToLocal(remote string) (string, error) {
	if !strings.HasPrefix(remote, "/data/anime/") {
		return "", errors.New("no mapping")
	}
	return "/mnt/anime/" + strings.TrimPrefix(remote, "/data/anime/"), nil
}

func (fakeMapper) SeriesFolder(remote string) (string, string, error) {
	rel := strings.TrimPrefix(remote, "/data/anime/")
	parts := strings.SplitN(rel, "/", 2)
	if len(parts) < 2 {
		return "", "", errors.New("no folder")
	}
	return parts[0], "/mnt/anime/" + parts[0], nil
}

type notifyLog struct {
	mu      sync.Mutex
	entries []string
}

func (n *notifyLog) add(entry string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, entry)
}

func (n *notifyLog) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.entries...)
}

func (n *notifyLog) NotifySeriesResolved(_ context.Context, title, _ string) error {
	n.add("resolved:" + title)
	return nil
}

func (n *notifyLog) NotifySeriesUnresolved(_ context.Context, folder string) error {
	n.add("unresolved:" + folder)
	return nil
}

func (n *notifyLog) NotifyPlaybackStarted(_ context.Context, series, _ string) error {
	n.add("started:" + series)
	return nil
}

func (n *notifyLog) NotifyPlaybackStopped(_ context.Context, series string) error {
	n.add("stopped:" + series)
	return nil
}

func (n *notifyLog) NotifyError(_ context.Context, err error, _ string) error {
	n.add("error:" + err.Error())
	return nil
}

func (n *notifyLog) TestNotification(context.Context) error { return nil }

type rig struct {
	mirror   *Mirror
	sessions *fakeSessions
	resolver *fakeResolver
	player   *fakePlayer
	hub      *panel.Hub
	notify   *notifyLog
}

func newRig(t *testing.T) *rig {
	t.Helper()
	cfg := config.Default()
	cfg.Sync.PollInterval = 1

	r := &rig{
		sessions: &fakeSessions{},
		resolver: &fakeResolver{},
		player:   &fakePlayer{},
		hub:      panel.NewHub(),
		notify:   &notifyLog{},
	}
	m, err := New(&cfg, nil, Deps{
		Sessions: r.sessions,
		Resolver: r.resolver,
		Player:   r.player,
		Mapper:   fakeMapper{},
		Hub:      r.hub,
		Notifier: r.notify,
		CoverDir: "/covers",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.fileExists = func(string) bool { return true }
	m.findEpisode = func(string, int, int) (string, error) {
		return "", errors.New("not used")
	}
	r.mirror = m
	return r
}

func frierenSession() *plex.Session {
	return &plex.Session{
		User:         "remotefriend",
		Library:      "Anime",
		SeriesTitle:  "Frieren: Beyond Journey's End",
		EpisodeTitle: "The Journey's End",
		Season:       1,
		Episode:      28,
		FilePath:     "/data/anime/Frieren/Frieren - S01E28.mkv",
		State:        "playing",
	}
}

func resolvedFrieren() resolver.Result {
	return resolver.Result{Record: identity.Record{
		FolderPath: "/mnt/anime/Frieren",
		Resolved:   true,
		Source:     "anilist",
		SourceID:   "154587",
		Title:      "Sousou no Frieren",
		CoverFile:  "anilist_154587.jpg",
		Synopsis:   "An elf mage outlives her party.",
	}, FromCache: true}
}

func TestCycleIdleWithoutSession(t *testing.T) {
	r := newRig(t)
	r.mirror.Cycle(context.Background())

	snapshot, seq := r.hub.Current()
	if seq != 1 || snapshot.Watching {
		t.Fatalf("expected idle snapshot, got %+v (seq %d)", snapshot, seq)
	}
	if r.player.stops != 0 {
		t.Fatal("idle with absent player must not call Stop")
	}
}

func TestCycleStartsPlayback(t *testing.T) {
	r := newRig(t)
	r.sessions.set(frierenSession(), nil)
	r.resolver.result = resolvedFrieren()

	r.mirror.Cycle(context.Background())

	if len(r.player.plays) != 1 || r.player.plays[0] != "/mnt/anime/Frieren/Frieren - S01E28.mkv" {
		t.Fatalf("unexpected plays: %v", r.player.plays)
	}

	snapshot, _ := r.hub.Current()
	if !snapshot.Watching || snapshot.SeriesTitle != "Sousou no Frieren" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if snapshot.CoverPath != "/covers/anilist_154587.jpg" {
		t.Fatalf("unexpected cover path %q", snapshot.CoverPath)
	}
	if snapshot.PlayerState != "attached" {
		t.Fatalf("unexpected player state %q", snapshot.PlayerState)
	}

	entries := r.notify.list()
	if len(entries) != 1 || entries[0] != "started:Sousou no Frieren" {
		t.Fatalf("unexpected notifications: %v", entries)
	}

	// Same session next cycle: no duplicate start notification.
	r.mirror.Cycle(context.Background())
	if got := r.notify.list(); len(got) != 1 {
		t.Fatalf("duplicate start notification: %v", got)
	}
}

func TestCycleNotifiesFreshResolution(t *testing.T) {
	r := newRig(t)
	r.sessions.set(frierenSession(), nil)
	result := resolvedFrieren()
	result.FromCache = false
	r.resolver.result = result

	r.mirror.Cycle(context.Background())

	entries := r.notify.list()
	if len(entries) != 2 || entries[0] != "resolved:Sousou no Frieren" {
		t.Fatalf("unexpected notifications: %v", entries)
	}
}

func TestCycleMirrorsPause(t *testing.T) {
	r := newRig(t)
	session := frierenSession()
	session.State = "paused"
	r.sessions.set(session, nil)
	r.resolver.result = resolvedFrieren()

	r.mirror.Cycle(context.Background())

	if len(r.player.pauses) != 1 || !r.player.pauses[0] {
		t.Fatalf("expected pause true, got %v", r.player.pauses)
	}
	snapshot, _ := r.hub.Current()
	if !snapshot.Paused {
		t.Fatalf("snapshot should report paused: %+v", snapshot)
	}
}

func TestCycleRelaunchesUnresponsivePlayer(t *testing.T) {
	r := newRig(t)
	r.sessions.set(frierenSession(), nil)
	r.resolver.result = resolvedFrieren()

	r.mirror.Cycle(context.Background())
	if len(r.player.plays) != 1 {
		t.Fatalf("expected initial play, got %v", r.player.plays)
	}

	r.player.mu.Lock()
	r.player.unhealthy = true
	r.player.mu.Unlock()

	r.mirror.Cycle(context.Background())

	if r.player.stops != 1 {
		t.Fatalf("unresponsive player should be stopped, got %d stops", r.player.stops)
	}
	if len(r.player.plays) != 2 {
		t.Fatalf("expected relaunch, got plays %v", r.player.plays)
	}
	// Same path throughout: no second start notification.
	if got := r.notify.list(); len(got) != 1 {
		t.Fatalf("unexpected notifications: %v", got)
	}
}

func TestCycleStopsPlayerWhenSessionEnds(t *testing.T) {
	r := newRig(t)
	r.sessions.set(frierenSession(), nil)
	r.resolver.result = resolvedFrieren()
	r.mirror.Cycle(context.Background())

	r.sessions.set(nil, nil)
	r.mirror.Cycle(context.Background())

	if r.player.stops != 1 {
		t.Fatalf("expected one stop, got %d", r.player.stops)
	}
	snapshot, _ := r.hub.Current()
	if snapshot.Watching {
		t.Fatalf("expected idle snapshot, got %+v", snapshot)
	}
	entries := r.notify.list()
	if entries[len(entries)-1] != "stopped:Sousou no Frieren" {
		t.Fatalf("expected stop notification, got %v", entries)
	}
}

func TestCycleSessionErrorKeepsPlayerRunning(t *testing.T) {
	r := newRig(t)
	r.sessions.set(frierenSession(), nil)
	r.resolver.result = resolvedFrieren()
	r.mirror.Cycle(context.Background())

	r.sessions.set(nil, errors.New("connection refused"))
	r.mirror.Cycle(context.Background())

	if r.player.stops != 0 {
		t.Fatal("a transient poll failure must not stop the player")
	}
	snapshot, _ := r.hub.Current()
	if snapshot.LastError == "" || !strings.Contains(snapshot.LastError, "connection refused") {
		t.Fatalf("expected error in snapshot, got %+v", snapshot)
	}
}

func TestCycleFallsBackToEpisodeScan(t *testing.T) {
	r := newRig(t)
	r.sessions.set(frierenSession(), nil)
	r.resolver.result = resolvedFrieren()
	r.mirror.fileExists = func(string) bool { return false }
	r.mirror.findEpisode = func(dir string, season, episode int) (string, error) {
		if dir != "/mnt/anime/Frieren" || season != 1 || episode != 28 {
			t.Errorf("unexpected scan args: %s s%de%d", dir, season, episode)
		}
		return "/mnt/anime/Frieren/differently named e28.mkv", nil
	}

	r.mirror.Cycle(context.Background())

	if len(r.player.plays) != 1 || r.player.plays[0] != "/mnt/anime/Frieren/differently named e28.mkv" {
		t.Fatalf("unexpected plays: %v", r.player.plays)
	}
}

func TestCyclePlaysEvenWhenUnresolved(t *testing.T) {
	r := newRig(t)
	r.sessions.set(frierenSession(), nil)
	r.resolver.result = resolver.Result{Record: identity.Record{
		FolderPath: "/mnt/anime/Frieren",
		Resolved:   false,
		SearchTerm: "Frieren",
	}, FromCache: true}

	r.mirror.Cycle(context.Background())

	if len(r.player.plays) != 1 {
		t.Fatalf("playback must proceed without identity, plays=%v", r.player.plays)
	}
	snapshot, _ := r.hub.Current()
	if snapshot.SeriesTitle != "Frieren: Beyond Journey's End" {
		t.Fatalf("expected session title fallback, got %q", snapshot.SeriesTitle)
	}
}

func TestRunStopsPlayerOnShutdown(t *testing.T) {
	r := newRig(t)
	r.sessions.set(frierenSession(), nil)
	r.resolver.result = resolvedFrieren()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.mirror.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(r.playerPlays()) == 0 {
		select {
		case <-deadline:
			t.Fatal("player never started")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if r.player.stops == 0 {
		t.Fatal("shutdown must stop the player")
	}
}

func (r *rig) playerPlays() []string {
	r.player.mu.Lock()
	defer r.player.mu.Unlock()
	return append([]string(nil), r.player.plays...)
}
