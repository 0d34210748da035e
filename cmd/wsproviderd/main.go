// wsproviderd is the GNOME Shell search provider daemon for recent VS Code
// workspaces. It is started by D-Bus activation and exits after an idle
// timeout.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/runger/wsprovider/internal/config"
	"github.com/runger/wsprovider/internal/daemon"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wsproviderd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	paths := config.DefaultPaths()
	cfg, err := config.LoadFromFile(paths.ConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	// Run the daemon (blocks until shutdown)
	return daemon.Run(context.Background(), &daemon.ServerConfig{
		Config: cfg,
		Paths:  paths,
		Logger: logger,
	})
}
