// Package titlematch scores library folder names against catalog titles.
// Folder names arrive with release markup (brackets, quality tags, season
// suffixes) while catalogs return clean titles in several languages, so the
// package normalizes both sides before comparing.
package titlematch
