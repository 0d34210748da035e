// Package refresh keeps the workspace index in step with the editors' storage.
//
// A Trigger turns reload requests from any source (SIGHUP, the D-Bus control
// interface, the storage watcher) into calls of one refresh routine. Requests
// that arrive while a refresh runs collapse into a single follow-up refresh.
package refresh

import (
	"context"
	"log/slog"
)

// Trigger serializes and coalesces reload requests.
type Trigger struct {
	requests chan struct{}
	refresh  func(context.Context)
	logger   *slog.Logger
}

// NewTrigger creates a trigger that runs refresh for each batch of requests.
func NewTrigger(refresh func(context.Context), logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		// One slot: a pending request stands for any number of requests.
		requests: make(chan struct{}, 1),
		refresh:  refresh,
		logger:   logger,
	}
}

// Request asks for a refresh. It never blocks.
func (t *Trigger) Request() {
	select {
	case t.requests <- struct{}{}:
	default:
		t.logger.Debug("reload already pending")
	}
}

// Run performs refreshes until ctx is done.
func (t *Trigger) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.requests:
			t.refresh(ctx)
		}
	}
}
