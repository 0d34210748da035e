// Package searchprovider answers desktop shell search requests for one editor
// variant from the workspace index.
package searchprovider

import (
	"context"
	"errors"
	"log/slog"

	"github.com/runger/wsprovider/internal/index"
	"github.com/runger/wsprovider/internal/match"
	"github.com/runger/wsprovider/internal/storage"
	"github.com/runger/wsprovider/internal/variant"
)

// Launcher starts a variant, optionally opening a workspace.
type Launcher interface {
	Launch(ctx context.Context, v *variant.Variant, r *storage.Record) (int, error)
}

// Icons resolves the icon of a desktop file id.
type Icons interface {
	Icon(desktopID string) string
}

// ResultMeta describes one result for display.
type ResultMeta struct {
	ID          string
	Name        string
	Description string
	Icon        string // Themed icon name or absolute path; empty if unknown
}

// Config contains the dependencies of a Service.
type Config struct {
	// Variant is the editor this service searches (required)
	Variant *variant.Variant

	// Index holds the records (required)
	Index *index.Index

	// Launcher activates results (required)
	Launcher Launcher

	// Icons resolves the variant's icon (optional)
	Icons Icons

	// Home abbreviates local paths in descriptions (optional)
	Home string

	// MaxResults caps returned ids; 0 means unlimited
	MaxResults int

	// Logger is the structured logger (optional, uses default if nil)
	Logger *slog.Logger

	// OnActivity is called at the start of every request (optional)
	OnActivity func()
}

// Service implements the search provider operations for one variant. It
// holds no mutable state of its own and is safe for concurrent use.
type Service struct {
	variant    *variant.Variant
	index      *index.Index
	launcher   Launcher
	icons      Icons
	home       string
	maxResults int
	logger     *slog.Logger
	onActivity func()
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Variant == nil {
		return nil, errors.New("variant is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("index is required")
	}
	if cfg.Index.Snapshot(cfg.Variant.ID) == nil {
		return nil, index.ErrUnknownVariant
	}
	if cfg.Launcher == nil {
		return nil, errors.New("launcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		variant:    cfg.Variant,
		index:      cfg.Index,
		launcher:   cfg.Launcher,
		icons:      cfg.Icons,
		home:       cfg.Home,
		maxResults: cfg.MaxResults,
		logger:     logger.With("variant", cfg.Variant.ID),
		onActivity: cfg.OnActivity,
	}, nil
}

// Variant returns the variant this service answers for.
func (s *Service) Variant() *variant.Variant {
	return s.variant
}

func (s *Service) touch() {
	if s.onActivity != nil {
		s.onActivity()
	}
}

// InitialResultSet returns the ids of all records matching terms, best first.
func (s *Service) InitialResultSet(ctx context.Context, terms []string) []string {
	s.touch()

	snap := s.index.Snapshot(s.variant.ID)
	matches := match.Rank(snap.Records, terms)
	ids := match.IDs(matches, s.maxResults)

	s.logger.Debug("initial search",
		"terms", terms,
		"generation", snap.Generation,
		"records", snap.Len(),
		"matches", len(matches),
	)
	return ids
}

// SubsearchResultSet narrows previous results to those matching terms. It
// never returns an id that was not in previous, and each id at most once.
func (s *Service) SubsearchResultSet(ctx context.Context, previous, terms []string) []string {
	s.touch()

	snap := s.index.Snapshot(s.variant.ID)
	records := make([]storage.Record, 0, len(previous))
	seen := make(map[string]struct{}, len(previous))
	for _, id := range previous {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if r, ok := snap.Lookup(id); ok {
			records = append(records, r)
		}
	}

	matches := match.Rank(records, terms)
	ids := match.IDs(matches, s.maxResults)

	s.logger.Debug("subsearch",
		"terms", terms,
		"previous", len(previous),
		"matches", len(matches),
	)
	return ids
}

// ResultMetas describes the given ids, in order. Unknown ids are omitted.
func (s *Service) ResultMetas(ctx context.Context, ids []string) []ResultMeta {
	s.touch()

	var icon string
	if s.icons != nil {
		icon = s.icons.Icon(s.variant.DesktopID)
	}

	snap := s.index.Snapshot(s.variant.ID)
	metas := make([]ResultMeta, 0, len(ids))
	for _, id := range ids {
		r, ok := snap.Lookup(id)
		if !ok {
			s.logger.Debug("no metadata for unknown result", "id", id)
			continue
		}
		metas = append(metas, ResultMeta{
			ID:          r.ID,
			Name:        r.Name,
			Description: storage.Describe(r.URI, s.home),
			Icon:        icon,
		})
	}
	return metas
}

// ActivateResult opens the workspace behind id. Unknown ids and launch
// failures are logged; the caller always gets a successful reply.
func (s *Service) ActivateResult(ctx context.Context, id string, terms []string, timestamp uint32) error {
	s.touch()

	r, ok := s.index.Snapshot(s.variant.ID).Lookup(id)
	if !ok {
		s.logger.Warn("activation of unknown result ignored", "id", id)
		return nil
	}

	if _, err := s.launcher.Launch(ctx, s.variant, &r); err != nil {
		s.logger.Error("failed to open workspace", "id", id, "error", err)
	}
	return nil
}

// LaunchSearch starts the editor without a workspace.
func (s *Service) LaunchSearch(ctx context.Context, terms []string, timestamp uint32) error {
	s.touch()

	if _, err := s.launcher.Launch(ctx, s.variant, nil); err != nil {
		s.logger.Error("failed to launch editor", "error", err)
	}
	return nil
}
