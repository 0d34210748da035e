package refresh

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runger/wsprovider/internal/index"
	"github.com/runger/wsprovider/internal/storage"
	"github.com/runger/wsprovider/internal/variant"
)

// maxConcurrentReads bounds parallel storage reads.
const maxConcurrentReads = 4

// LoadFunc reads the records of one variant. storage.Load is the production
// implementation.
type LoadFunc func(ctx context.Context, logger *slog.Logger, variantID string, b storage.Backend, opts storage.Options) []storage.Record

// Refresher reloads every variant into the index.
type Refresher struct {
	variants []*variant.Variant
	index    *index.Index
	opts     storage.Options
	load     LoadFunc
	logger   *slog.Logger
}

// Config configures a Refresher.
type Config struct {
	Variants []*variant.Variant
	Index    *index.Index
	Options  storage.Options
	// Load reads one variant (optional, storage.Load if nil)
	Load   LoadFunc
	Logger *slog.Logger
}

// NewRefresher creates a Refresher.
func NewRefresher(cfg Config) *Refresher {
	r := &Refresher{
		variants: cfg.Variants,
		index:    cfg.Index,
		opts:     cfg.Options,
		load:     cfg.Load,
		logger:   cfg.Logger,
	}
	if r.load == nil {
		r.load = storage.Load
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// RefreshAll reads all variants concurrently and publishes each variant's
// records as soon as its read completes. A failing variant does not affect
// the others; only cancellation of ctx is reported.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(maxConcurrentReads)

	for _, v := range r.variants {
		g.Go(func() error {
			gen, err := r.index.Reload(ctx, v.ID, func(ctx context.Context) []storage.Record {
				return r.load(ctx, r.logger, v.ID, v.Backend, r.opts)
			})
			if err != nil {
				r.logger.Warn("failed to refresh variant", "variant", v.ID, "error", err)
				return nil
			}
			r.logger.Debug("refreshed variant",
				"variant", v.ID,
				"generation", gen,
				"records", r.index.Snapshot(v.ID).Len(),
			)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.logger.Info("refreshed recent workspaces",
		"variants", len(r.variants),
		"records", r.index.Count(),
		"duration", time.Since(start),
	)
	return nil
}

// Run is RefreshAll without a result, for use with a Trigger.
func (r *Refresher) Run(ctx context.Context) {
	_ = r.RefreshAll(ctx)
}
