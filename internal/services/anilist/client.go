package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"shadowplay/internal/catalogs"
)

// SourceName identifies AniList in cached records and logs.
const SourceName = "anilist"

const searchQuery = `query ($search: String) {
  Page(page: 1, perPage: 10) {
    media(search: $search, type: ANIME) {
      id
      title { romaji english native }
      synonyms
      description(asHtml: false)
      coverImage { large extraLarge }
    }
  }
}`

// Client queries the AniList GraphQL API. No authentication is required for
// search.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates an AniList client.
func New(endpoint string, timeout time.Duration, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("anilist endpoint required")
	}
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	client := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name implements catalogs.Client.
func (c *Client) Name() string { return SourceName }

type mediaTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

type coverImage struct {
	Large      string `json:"large"`
	ExtraLarge string `json:"extraLarge"`
}

type media struct {
	ID          int64      `json:"id"`
	Title       mediaTitle `json:"title"`
	Synonyms    []string   `json:"synonyms"`
	Description string     `json:"description"`
	CoverImage  coverImage `json:"coverImage"`
}

type searchResponse struct {
	Data struct {
		Page struct {
			Media []media `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// SearchTitles implements catalogs.Client.
func (c *Client) SearchTitles(ctx context.Context, term string) ([]catalogs.Candidate, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, errors.New("anilist search term required")
	}

	payload, err := json.Marshal(map[string]any{
		"query":     searchQuery,
		"variables": map[string]string{"search": term},
	})
	if err != nil {
		return nil, fmt.Errorf("encode anilist query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build anilist request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query anilist: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("anilist returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode anilist response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("anilist error: %s", decoded.Errors[0].Message)
	}

	candidates := make([]catalogs.Candidate, 0, len(decoded.Data.Page.Media))
	for _, entry := range decoded.Data.Page.Media {
		candidates = append(candidates, catalogs.Candidate{
			Source:   SourceName,
			ID:       strconv.FormatInt(entry.ID, 10),
			Titles:   collectTitles(entry),
			Synopsis: StripMarkup(entry.Description),
			CoverURL: pickCover(entry.CoverImage),
		})
	}
	return candidates, nil
}

func collectTitles(entry media) []string {
	titles := make([]string, 0, 3+len(entry.Synonyms))
	for _, title := range []string{entry.Title.Romaji, entry.Title.English, entry.Title.Native} {
		if strings.TrimSpace(title) != "" {
			titles = append(titles, title)
		}
	}
	for _, synonym := range entry.Synonyms {
		if strings.TrimSpace(synonym) != "" {
			titles = append(titles, synonym)
		}
	}
	return titles
}

func pickCover(img coverImage) string {
	if img.ExtraLarge != "" {
		return img.ExtraLarge
	}
	return img.Large
}

var (
	tagPattern    = regexp.MustCompile(`<[^>]+>`)
	spacesPattern = regexp.MustCompile(`\s+`)
)

// StripMarkup removes the HTML fragments AniList embeds in descriptions and
// collapses the remaining whitespace.
func StripMarkup(s string) string {
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = strings.ReplaceAll(s, "<br/>", "\n")
	s = strings.ReplaceAll(s, "<br />", "\n")
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&#039;", "'")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spacesPattern.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
