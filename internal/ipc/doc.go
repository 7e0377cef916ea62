// Package ipc connects the shadowplay CLI to the running daemon using
// JSON-RPC over a Unix domain socket. The daemon hosts the server; the CLI
// dials per command.
package ipc
