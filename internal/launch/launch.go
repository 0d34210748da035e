// Package launch starts editor processes for activated workspaces and hands
// each one to its own transient systemd scope, so that the editor outlives
// the daemon that started it.
package launch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/execabs"

	"github.com/runger/wsprovider/internal/storage"
	"github.com/runger/wsprovider/internal/variant"
)

// DefaultScopeTimeout bounds a single scope handoff.
const DefaultScopeTimeout = 10 * time.Second

// Starter starts a detached process and returns its pid.
type Starter interface {
	Start(ctx context.Context, argv []string) (int, error)
}

// ExecStarter starts processes in their own process group with stdio
// connected to the null device, and reaps them in the background.
type ExecStarter struct{}

// Start implements Starter.
func (ExecStarter) Start(ctx context.Context, argv []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(argv) == 0 {
		return 0, ErrEmptyCommand
	}

	// execabs prevents executing binaries resolved to relative paths.
	cmd := execabs.Command(argv[0], argv[1:]...)
	// nil stdio means the null device.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	go func() { _ = cmd.Wait() }()

	return cmd.Process.Pid, nil
}

// Config configures a Launcher.
type Config struct {
	// Starter starts processes (optional, ExecStarter if nil)
	Starter Starter

	// Scopes creates transient scopes (optional, no handoff if nil)
	Scopes ScopeManager

	// Logger is the structured logger (optional, uses default if nil)
	Logger *slog.Logger

	// UnitPrefix prefixes scope names. Default: app-gnome
	UnitPrefix string

	// ScopeTimeout bounds each scope handoff. Default: 10 seconds
	ScopeTimeout time.Duration
}

// Launcher launches variants. It is safe for concurrent use.
type Launcher struct {
	starter      Starter
	scopes       ScopeManager
	logger       *slog.Logger
	unitPrefix   string
	scopeTimeout time.Duration

	wg sync.WaitGroup
}

// New creates a Launcher.
func New(cfg Config) *Launcher {
	l := &Launcher{
		starter:      cfg.Starter,
		scopes:       cfg.Scopes,
		logger:       cfg.Logger,
		unitPrefix:   cfg.UnitPrefix,
		scopeTimeout: cfg.ScopeTimeout,
	}
	if l.starter == nil {
		l.starter = ExecStarter{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.unitPrefix == "" {
		l.unitPrefix = "app-gnome"
	}
	if l.scopeTimeout <= 0 {
		l.scopeTimeout = DefaultScopeTimeout
	}
	return l
}

// Launch starts the variant, opening r when it is not nil, and returns the
// pid of the started process. The scope handoff runs in the background and
// its outcome is only logged.
func (l *Launcher) Launch(ctx context.Context, v *variant.Variant, r *storage.Record) (int, error) {
	argv, err := Argv(v.Command, r)
	if err != nil {
		return 0, err
	}

	pid, err := l.starter.Start(ctx, argv)
	if err != nil {
		return 0, fmt.Errorf("failed to launch %s: %w", v.ID, err)
	}

	attrs := []any{"variant", v.ID, "pid", pid}
	if r != nil {
		attrs = append(attrs, "uri", r.URI)
	}
	l.logger.Info("launched editor", attrs...)

	if l.scopes != nil {
		name := ScopeName(l.unitPrefix, v.AppID())
		l.wg.Add(1)
		go l.handoff(name, v, pid)
	}

	return pid, nil
}

func (l *Launcher) handoff(name string, v *variant.Variant, pid int) {
	defer l.wg.Done()

	// Detached from the caller: the activation call has already returned.
	ctx, cancel := context.WithTimeout(context.Background(), l.scopeTimeout)
	defer cancel()

	if err := l.scopes.StartTransientScope(ctx, name, pid, v.Name); err != nil {
		l.logger.Warn("failed to move editor into its own scope",
			"variant", v.ID,
			"pid", pid,
			"scope", name,
			"error", err,
		)
		return
	}
	l.logger.Debug("moved editor into scope", "variant", v.ID, "pid", pid, "scope", name)
}

// Wait blocks until all pending scope handoffs have finished.
func (l *Launcher) Wait() {
	l.wg.Wait()
}
