package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shadowplay/internal/config"
)

const userAgent = "shadowplay/1.0"

// Session is one remote playback session that passed the user and library
// filters. FilePath is the media path as the Plex server sees it.
type Session struct {
	User         string
	Library      string
	SeriesTitle  string
	EpisodeTitle string
	Season       int
	Episode      int
	FilePath     string
	State        string
	ViewOffsetMS int64
}

// Playing reports whether the session is actively advancing. Plex reports
// "buffering" during seeks, which counts as playing for mirroring purposes.
func (s *Session) Playing() bool {
	return s.State == "playing" || s.State == "buffering"
}

// Client queries a Plex server's active sessions over HTTP.
type Client struct {
	baseURL   string
	token     string
	username  string
	libraries map[string]struct{}
	client    *http.Client
}

// NewClient builds a session client from configuration.
func NewClient(cfg *config.Config) *Client {
	libraries := make(map[string]struct{}, len(cfg.Plex.LibraryNames))
	for _, name := range cfg.Plex.LibraryNames {
		libraries[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	timeout := time.Duration(cfg.Sync.SessionTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.Plex.URL), "/"),
		token:     strings.TrimSpace(cfg.Plex.Token),
		username:  strings.TrimSpace(cfg.Plex.Username),
		libraries: libraries,
		client:    &http.Client{Timeout: timeout},
	}
}

type sessionPart struct {
	File string `xml:"file,attr"`
}

type sessionMedia struct {
	Parts []sessionPart `xml:"Part"`
}

type sessionUser struct {
	Title string `xml:"title,attr"`
}

type sessionPlayer struct {
	State string `xml:"state,attr"`
}

type sessionVideo struct {
	Type                string         `xml:"type,attr"`
	Title               string         `xml:"title,attr"`
	GrandparentTitle    string         `xml:"grandparentTitle,attr"`
	ParentIndex         int            `xml:"parentIndex,attr"`
	Index               int            `xml:"index,attr"`
	LibrarySectionTitle string         `xml:"librarySectionTitle,attr"`
	ViewOffset          int64          `xml:"viewOffset,attr"`
	User                sessionUser    `xml:"User"`
	Player              sessionPlayer  `xml:"Player"`
	Media               []sessionMedia `xml:"Media"`
}

type sessionContainer struct {
	Videos []sessionVideo `xml:"Video"`
}

// ActiveSession returns the first session belonging to the configured user
// inside a configured library, or nil when that user is not watching
// anything.
func (c *Client) ActiveSession(ctx context.Context) (*Session, error) {
	sessionsURL := fmt.Sprintf("%s/status/sessions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sessionsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build plex sessions request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch plex sessions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("plex rejected the token (status %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("plex sessions returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var container sessionContainer
	if err := xml.NewDecoder(resp.Body).Decode(&container); err != nil {
		return nil, fmt.Errorf("decode plex sessions: %w", err)
	}

	for _, video := range container.Videos {
		if !strings.EqualFold(strings.TrimSpace(video.User.Title), c.username) {
			continue
		}
		if !c.libraryAllowed(video.LibrarySectionTitle) {
			continue
		}
		session := &Session{
			User:         video.User.Title,
			Library:      video.LibrarySectionTitle,
			SeriesTitle:  video.GrandparentTitle,
			EpisodeTitle: video.Title,
			Season:       video.ParentIndex,
			Episode:      video.Index,
			FilePath:     firstPartFile(video.Media),
			State:        strings.ToLower(strings.TrimSpace(video.Player.State)),
			ViewOffsetMS: video.ViewOffset,
		}
		if session.SeriesTitle == "" {
			session.SeriesTitle = video.Title
		}
		return session, nil
	}
	return nil, nil
}

func (c *Client) libraryAllowed(name string) bool {
	if len(c.libraries) == 0 {
		return true
	}
	_, ok := c.libraries[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func firstPartFile(media []sessionMedia) string {
	for _, m := range media {
		for _, part := range m.Parts {
			if strings.TrimSpace(part.File) != "" {
				return part.File
			}
		}
	}
	return ""
}
