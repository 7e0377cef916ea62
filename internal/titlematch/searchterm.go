package titlematch

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// SearchTerm turns a library folder name into a human-readable catalog query.
// Markers and trailing season designators are stripped and the remaining
// words are title-cased, so "attack_on_titan_s4_1080p" becomes
// "Attack On Titan".
func SearchTerm(folder string) string {
	normalized := NormalizeFolder(folder)
	if normalized == "" {
		return ""
	}
	return titleCaser.String(normalized)
}
