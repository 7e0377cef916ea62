package titlematch

import (
	"regexp"
	"strings"
)

var (
	bracketPattern   = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\{[^}]*\}`)
	separatorPattern = regexp.MustCompile(`[._\-:;,!?'"~+/\\]+`)
	spacePattern     = regexp.MustCompile(`\s+`)
	seasonSuffix     = regexp.MustCompile(`(?i)\b(season\s*\d+|s\d{1,2}|part\s*\d+|cour\s*\d+)\s*$`)
	qualityMarker    = regexp.MustCompile(`(?i)\b(480p|720p|1080p|2160p|4k|x264|x265|h\.?264|h\.?265|hevc|bluray|blu-ray|bdrip|webrip|web-dl|webdl|hdtv|dvdrip|aac|flac|10bit|8bit|dual\s*audio|multi-?sub|batch|complete|uncensored)\b`)
)

var leadingArticles = []string{"the ", "a ", "an "}

// Normalize lowers a title to its comparison form: case folded, bracketed
// sections and punctuation removed, leading articles dropped, whitespace
// collapsed.
func Normalize(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = bracketPattern.ReplaceAllString(s, " ")
	s = separatorPattern.ReplaceAllString(s, " ")
	s = spacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	for _, article := range leadingArticles {
		if strings.HasPrefix(s, article) {
			s = strings.TrimSpace(s[len(article):])
			break
		}
	}
	return s
}

// NormalizeFolder prepares a library folder name for matching. On top of the
// base normalization it strips release-quality markers and trailing season
// designators, which folder names carry but catalog titles do not.
func NormalizeFolder(folder string) string {
	s := Normalize(folder)
	s = qualityMarker.ReplaceAllString(s, " ")
	s = spacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	for {
		trimmed := strings.TrimSpace(seasonSuffix.ReplaceAllString(s, ""))
		if trimmed == s {
			break
		}
		s = trimmed
	}
	if s == "" {
		return Normalize(folder)
	}
	return s
}

func tokens(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

func tokenSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokens(normalized) {
		set[tok] = struct{}{}
	}
	return set
}
