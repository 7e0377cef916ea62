// Package player owns the local mpv instance. The controller launches the
// binary with an IPC socket, keeps at most one process alive, and exposes
// play, pause, and stop operations that the reconciliation loop drives.
// The window is launched muted and shrunk into a screen corner so local
// watch trackers see playback without the video being intrusive.
package player
