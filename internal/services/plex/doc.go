// Package plex reads active playback sessions from a Plex server. Only the
// sessions endpoint is used; the daemon never modifies anything on the
// server.
package plex
