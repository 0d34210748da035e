package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
)

// Run starts the daemon and blocks until shutdown.
// It handles signals for lifecycle management:
//   - SIGTERM/SIGINT: graceful shutdown
//   - SIGHUP: reload recent workspaces of all variants
//   - SIGPIPE: ignore (prevent crashes on broken pipe)
func Run(ctx context.Context, cfg *ServerConfig) error {
	server, err := NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Create context that cancels on signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Ignore SIGPIPE to prevent crash on broken pipe
	signal.Ignore(syscall.SIGPIPE)

	// Handle signals
	sigChan := make(chan os.Signal, 4)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		for {
			select {
			case sig := <-sigChan:
				switch sig {
				case syscall.SIGTERM, syscall.SIGINT:
					server.logger.Info("received shutdown signal", "signal", sig)
					cancel()
					return

				case syscall.SIGHUP:
					server.logger.Info("received SIGHUP, reloading recent workspaces")
					server.Reload()
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// Start server (blocking)
	return server.Start(ctx)
}

// IsRunning reports whether some process owns busName on the session bus.
func IsRunning(ctx context.Context, busName string) (bool, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return false, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	var owned bool
	call := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, busName)
	if err := call.Store(&owned); err != nil {
		return false, fmt.Errorf("failed to query owner of %s: %w", busName, err)
	}
	return owned, nil
}

// RequestReload asks the running daemon to reload all variants. The daemon
// is started by bus activation if it is not running.
func RequestReload(ctx context.Context, busName string) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	obj := conn.Object(busName, ObjectPathBase)
	if err := obj.CallWithContext(ctx, ControlInterface+".ReloadAll", 0).Err; err != nil {
		return fmt.Errorf("reload request failed: %w", err)
	}
	return nil
}
