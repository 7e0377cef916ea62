// Package main hosts the shadowplay CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon, identity cache maintenance, one-shot catalog lookups,
// and configuration scaffolding. It centralizes configuration resolution and
// socket discovery so subcommands can focus on user experience instead of
// wiring.
package main
