package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/runger/wsprovider/internal/config"
	"github.com/runger/wsprovider/internal/index"
	"github.com/runger/wsprovider/internal/refresh"
	"github.com/runger/wsprovider/internal/storage"
	"github.com/runger/wsprovider/internal/variant"
)

// loadConfig loads the configuration selected by --config.
func loadConfig() (*config.Config, *config.Paths, error) {
	paths := config.DefaultPaths()
	path := configFile
	if path == "" {
		path = paths.ConfigFile()
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, paths, nil
}

// newLogger returns a text logger on stderr at the configured level.
func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// selectVariants returns the enabled variants, or only the one with the
// given id.
func selectVariants(cfg *config.Config, paths *config.Paths, id string) ([]*variant.Variant, error) {
	variants := variant.FromConfig(cfg, paths)
	if id == "" {
		if len(variants) == 0 {
			return nil, fmt.Errorf("no editor variants enabled")
		}
		return variants, nil
	}

	v, ok := variant.Find(variants, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s (known: %v)", index.ErrUnknownVariant, id, variant.IDs(variants))
	}
	return []*variant.Variant{v}, nil
}

// loadIndex reads the storage of the given variants into a fresh index,
// the same way the daemon does on startup.
func loadIndex(ctx context.Context, cfg *config.Config, variants []*variant.Variant, logger *slog.Logger) (*index.Index, error) {
	idx := index.New(variant.IDs(variants)...)
	r := refresh.NewRefresher(refresh.Config{
		Variants: variants,
		Index:    idx,
		Options:  storage.Options{IncludeFiles: cfg.Search.IncludeFiles},
		Logger:   logger,
	})
	if err := r.RefreshAll(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}
