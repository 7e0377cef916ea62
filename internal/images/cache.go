// Package images maintains the on-disk cover cache. Covers are fetched once
// per catalog identity and stored as <source>_<id>.<ext> so the watch panel
// can load them without touching the network.
package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Cache downloads and stores cover art under a single directory.
type Cache struct {
	dir        string
	httpClient *http.Client
}

// NewCache creates a cover cache rooted at dir.
func NewCache(dir string, timeout time.Duration) *Cache {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Cache{
		dir:        dir,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// PathFor returns the absolute path for a cached cover file name.
func (c *Cache) PathFor(fileName string) string {
	return filepath.Join(c.dir, fileName)
}

// Ensure downloads the cover for a catalog identity unless it is already
// cached, returning the file name relative to the cache directory. An empty
// coverURL yields an empty name with no error.
func (c *Cache) Ensure(ctx context.Context, source, id, coverURL string) (string, error) {
	coverURL = strings.TrimSpace(coverURL)
	if coverURL == "" {
		return "", nil
	}

	fileName := fmt.Sprintf("%s_%s%s", sanitize(source), sanitize(id), extensionOf(coverURL))
	target := filepath.Join(c.dir, fileName)
	if _, err := os.Stat(target); err == nil {
		return fileName, nil
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure image cache dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return "", fmt.Errorf("build cover request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch cover: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("cover fetch returned %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(c.dir, "."+fileName+".*")
	if err != nil {
		return "", fmt.Errorf("create temp cover: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write cover: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close cover: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("store cover: %w", err)
	}
	return fileName, nil
}

func extensionOf(coverURL string) string {
	parsed, err := url.Parse(coverURL)
	if err != nil {
		return ".jpg"
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
		return ext
	default:
		return ".jpg"
	}
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
