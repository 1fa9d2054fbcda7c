// Command murmurd runs the murmur transcription daemon in the foreground.
//
// It is the entrypoint for service managers such as systemd. Interactive use
// normally goes through `murmur start`, which launches the same daemon loop
// detached from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"murmur/internal/config"
	"murmur/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "path to the murmur configuration file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	bind := flag.String("address", "", "override the configured API bind address")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "murmurd: load config: %v\n", err)
		os.Exit(1)
	}
	if addr := *bind; addr != "" {
		cfg.API.Bind = addr
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "murmurd: prepare directories: %v\n", err)
		os.Exit(1)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "murmurd: %v\n", err)
		}
		os.Exit(1)
	}
}
