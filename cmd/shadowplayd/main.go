// Command shadowplayd runs the mirroring daemon directly in the foreground,
// without going through the CLI's hidden daemon subcommand.
package main

import (
	"context"
	"flag"
	"log"

	"shadowplay/internal/config"
	"shadowplay/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	noAutoStart := flag.Bool("no-auto-start", false, "do not begin mirroring until requested over IPC")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel:    *logLevel,
		NoAutoStart: *noAutoStart,
	}); err != nil {
		log.Fatalf("shadowplayd: %v", err)
	}
}
