// Package mediapath translates Plex server file paths into paths on the
// local machine and locates episode files inside library folders. The
// translation is driven by configured remote/local prefix pairs, so the
// daemon never needs to ask the Plex server about library locations.
package mediapath

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"shadowplay/internal/config"
)

// ErrNoMapping reports a remote path outside every configured mapping.
var ErrNoMapping = errors.New("mediapath: no mapping for path")

// ErrEpisodeNotFound reports a folder with no file for the wanted episode.
var ErrEpisodeNotFound = errors.New("mediapath: episode file not found")

var videoExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".m4v": {}, ".webm": {}, ".ts": {},
}

// Mapper rewrites remote library paths using prefix pairs. Longer remote
// prefixes win when several match.
type Mapper struct {
	mappings []config.PathMapping
}

// NewMapper builds a mapper from configured pairs.
func NewMapper(mappings []config.PathMapping) *Mapper {
	sorted := make([]config.PathMapping, len(mappings))
	copy(sorted, mappings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Remote) > len(sorted[j].Remote)
	})
	return &Mapper{mappings: sorted}
}

// ToLocal rewrites a remote file path to its local equivalent.
func (m *Mapper) ToLocal(remotePath string) (string, error) {
	mapping, rel, err := m.match(remotePath)
	if err != nil {
		return "", err
	}
	if rel == "" {
		return mapping.Local, nil
	}
	return filepath.Join(mapping.Local, filepath.FromSlash(rel)), nil
}

// SeriesFolder returns the series folder name (the first path component
// under the mapped root) and its local directory for a remote file path.
func (m *Mapper) SeriesFolder(remotePath string) (name string, localDir string, err error) {
	mapping, rel, err := m.match(remotePath)
	if err != nil {
		return "", "", err
	}
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return "", "", fmt.Errorf("%w: %s has no folder under %s", ErrNoMapping, remotePath, mapping.Remote)
	}
	parts := strings.Split(rel, "/")
	if len(parts) < 2 {
		// File sits directly in the library root; treat its own name minus
		// extension as the series folder.
		base := parts[0]
		return strings.TrimSuffix(base, filepath.Ext(base)), mapping.Local, nil
	}
	return parts[0], filepath.Join(mapping.Local, parts[0]), nil
}

func (m *Mapper) match(remotePath string) (config.PathMapping, string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(remotePath), "\\", "/")
	for _, mapping := range m.mappings {
		prefix := strings.TrimRight(strings.ReplaceAll(mapping.Remote, "\\", "/"), "/")
		if normalized == prefix {
			return mapping, "", nil
		}
		if strings.HasPrefix(normalized, prefix+"/") {
			return mapping, strings.TrimPrefix(normalized, prefix+"/"), nil
		}
	}
	return config.PathMapping{}, "", fmt.Errorf("%w: %s", ErrNoMapping, remotePath)
}

// FindEpisode walks a series directory looking for the file of a given
// season and episode. Both sXXeYY and NxM naming are recognized. When the
// season is unknown (zero), any file carrying the episode number matches.
func FindEpisode(dir string, season, episode int) (string, error) {
	if episode <= 0 {
		return "", fmt.Errorf("%w: episode number required", ErrEpisodeNotFound)
	}
	patterns := episodePatterns(season, episode)

	var matches []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		if _, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		base := entry.Name()
		for _, pattern := range patterns {
			if pattern.MatchString(base) {
				matches = append(matches, path)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: s%02de%02d in %s", ErrEpisodeNotFound, season, episode, dir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

func episodePatterns(season, episode int) []*regexp.Regexp {
	if season > 0 {
		return []*regexp.Regexp{
			regexp.MustCompile(fmt.Sprintf(`(?i)\bs0*%de0*%d\b`, season, episode)),
			regexp.MustCompile(fmt.Sprintf(`(?i)\b0*%dx0*%d\b`, season, episode)),
		}
	}
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`(?i)\bs\d{1,2}e0*%d\b`, episode)),
		regexp.MustCompile(fmt.Sprintf(`(?i)\be(p|pisode)?\s*0*%d\b`, episode)),
		regexp.MustCompile(fmt.Sprintf(`(?i)[\s_.-]0*%d[\s_.-]`, episode)),
	}
}
