package plex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"shadowplay/internal/config"
)

const sessionsXML = `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="2">
  <Video type="episode" title="The Journey's End" grandparentTitle="Frieren: Beyond Journey's End"
         parentIndex="1" index="28" librarySectionTitle="Anime" viewOffset="421000">
    <Media><Part file="/data/anime/Frieren/Frieren - S01E28.mkv"/></Media>
    <User title="remotefriend"/>
    <Player state="playing"/>
  </Video>
  <Video type="episode" title="Other Episode" grandparentTitle="One Piece"
         parentIndex="21" index="1089" librarySectionTitle="Anime" viewOffset="5000">
    <Media><Part file="/data/anime/One Piece/One Piece - S21E1089.mkv"/></Media>
    <User title="someoneelse"/>
    <Player state="playing"/>
  </Video>
</MediaContainer>`

func testClient(t *testing.T, serverURL, username string, libraries []string) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.Plex.URL = serverURL
	cfg.Plex.Token = "abc123"
	cfg.Plex.Username = username
	cfg.Plex.LibraryNames = libraries
	cfg.Sync.SessionTimeout = 2
	return NewClient(&cfg)
}

func TestActiveSessionFiltersByUser(t *testing.T) {
	var gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotToken = r.Header.Get("X-Plex-Token")
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(sessionsXML))
	}))
	defer server.Close()

	client := testClient(t, server.URL, "RemoteFriend", []string{"Anime"})
	session, err := client.ActiveSession(context.Background())
	if err != nil {
		t.Fatalf("ActiveSession: %v", err)
	}
	if session == nil {
		t.Fatal("expected a session")
	}
	if gotToken != "abc123" {
		t.Fatalf("token header missing, got %q", gotToken)
	}
	if session.SeriesTitle != "Frieren: Beyond Journey's End" {
		t.Fatalf("unexpected series: %q", session.SeriesTitle)
	}
	if session.Season != 1 || session.Episode != 28 {
		t.Fatalf("unexpected numbering: s%de%d", session.Season, session.Episode)
	}
	if session.FilePath != "/data/anime/Frieren/Frieren - S01E28.mkv" {
		t.Fatalf("unexpected file path: %q", session.FilePath)
	}
	if !session.Playing() {
		t.Fatal("session should be playing")
	}
}

func TestActiveSessionFiltersByLibrary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(sessionsXML))
	}))
	defer server.Close()

	client := testClient(t, server.URL, "remotefriend", []string{"Movies"})
	session, err := client.ActiveSession(context.Background())
	if err != nil {
		t.Fatalf("ActiveSession: %v", err)
	}
	if session != nil {
		t.Fatalf("library filter should exclude session, got %+v", session)
	}
}

func TestActiveSessionNoSessions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<MediaContainer size="0"></MediaContainer>`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, "remotefriend", []string{"Anime"})
	session, err := client.ActiveSession(context.Background())
	if err != nil {
		t.Fatalf("ActiveSession: %v", err)
	}
	if session != nil {
		t.Fatalf("expected nil session, got %+v", session)
	}
}

func TestActiveSessionUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := testClient(t, server.URL, "remotefriend", nil)
	if _, err := client.ActiveSession(context.Background()); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestSessionPausedState(t *testing.T) {
	paused := `<MediaContainer size="1">
  <Video type="episode" title="Ep" grandparentTitle="Show" parentIndex="1" index="2" librarySectionTitle="Anime">
    <Media><Part file="/data/anime/Show/e2.mkv"/></Media>
    <User title="remotefriend"/>
    <Player state="paused"/>
  </Video>
</MediaContainer>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(paused))
	}))
	defer server.Close()

	client := testClient(t, server.URL, "remotefriend", []string{"Anime"})
	session, err := client.ActiveSession(context.Background())
	if err != nil {
		t.Fatalf("ActiveSession: %v", err)
	}
	if session == nil || session.Playing() {
		t.Fatalf("expected paused session, got %+v", session)
	}
}
