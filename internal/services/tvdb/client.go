package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"shadowplay/internal/catalogs"
)

// SourceName identifies TVDB in cached records and logs.
const SourceName = "tvdb"

// Client queries the TVDB v4 API. Authentication is a login call that
// returns a bearer token; the token is cached and refreshed on 401.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	token string
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

// New creates a TVDB client.
func New(apiKey, baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tvdb api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tvdb base url required")
	}
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name implements catalogs.Client.
func (c *Client) Name() string { return SourceName }

type searchResult struct {
	TVDBID   string   `json:"tvdb_id"`
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases"`
	Overview string   `json:"overview"`
	ImageURL string   `json:"image_url"`
}

// SearchTitles implements catalogs.Client.
func (c *Client) SearchTitles(ctx context.Context, term string) ([]catalogs.Candidate, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, errors.New("tvdb search term required")
	}

	body, err := c.authorizedGet(ctx, fmt.Sprintf("/search?query=%s&type=series&limit=10", url.QueryEscape(term)))
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Data []searchResult `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode tvdb search: %w", err)
	}

	candidates := make([]catalogs.Candidate, 0, len(decoded.Data))
	for _, entry := range decoded.Data {
		titles := make([]string, 0, 1+len(entry.Aliases))
		if strings.TrimSpace(entry.Name) != "" {
			titles = append(titles, entry.Name)
		}
		for _, alias := range entry.Aliases {
			if strings.TrimSpace(alias) != "" {
				titles = append(titles, alias)
			}
		}
		candidates = append(candidates, catalogs.Candidate{
			Source:   SourceName,
			ID:       entry.TVDBID,
			Titles:   titles,
			Synopsis: entry.Overview,
			CoverURL: entry.ImageURL,
		})
	}
	return candidates, nil
}

// authorizedGet performs a GET with a bearer token, logging in once on a 401.
func (c *Client) authorizedGet(ctx context.Context, path string) ([]byte, error) {
	token, err := c.ensureToken(ctx, false)
	if err != nil {
		return nil, err
	}

	body, status, err := c.get(ctx, path, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		token, err = c.ensureToken(ctx, true)
		if err != nil {
			return nil, err
		}
		body, status, err = c.get(ctx, path, token)
		if err != nil {
			return nil, err
		}
	}
	if status >= 300 {
		return nil, fmt.Errorf("tvdb returned %d: %s", status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path, token string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build tvdb request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("query tvdb: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read tvdb response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) ensureToken(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && !force {
		return c.token, nil
	}

	payload, err := json.Marshal(map[string]string{"apikey": c.apiKey})
	if err != nil {
		return "", fmt.Errorf("encode tvdb login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build tvdb login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tvdb login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("tvdb login returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode tvdb login: %w", err)
	}
	if decoded.Data.Token == "" {
		return "", errors.New("tvdb login returned no token")
	}

	c.token = decoded.Data.Token
	return c.token, nil
}
