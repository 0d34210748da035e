// Package index holds the in-memory view of recent workspaces, one immutable
// snapshot per editor variant.
//
// Readers load a snapshot with a single atomic operation and never block.
// Refreshes build a complete snapshot off to the side and swap it in, so a
// reader sees either the old generation or the new one, never a mix.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/runger/wsprovider/internal/storage"
)

// ErrUnknownVariant is returned when refreshing a variant the index was not
// created with.
var ErrUnknownVariant = errors.New("unknown variant")

// Snapshot is one complete generation of a variant's records.
// Snapshots are never mutated after publication.
type Snapshot struct {
	Variant    string
	Generation uint64
	LoadedAt   time.Time
	Records    []storage.Record

	byID map[string]int
}

func newSnapshot(variantID string, gen uint64, records []storage.Record) *Snapshot {
	byID := make(map[string]int, len(records))
	kept := make([]storage.Record, 0, len(records))
	for _, r := range records {
		if _, dup := byID[r.ID]; dup {
			continue
		}
		byID[r.ID] = len(kept)
		kept = append(kept, r)
	}
	return &Snapshot{
		Variant:    variantID,
		Generation: gen,
		LoadedAt:   time.Now(),
		Records:    kept,
		byID:       byID,
	}
}

// Lookup returns the record with the given id.
func (s *Snapshot) Lookup(id string) (storage.Record, bool) {
	if s == nil {
		return storage.Record{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return storage.Record{}, false
	}
	return s.Records[i], true
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

type slot struct {
	mu   sync.Mutex // serializes refreshes of this variant
	snap atomic.Pointer[Snapshot]
}

// Index maps variant ids to their current snapshot. The set of variants is
// fixed at construction.
type Index struct {
	order []string
	slots map[string]*slot
	gen   atomic.Uint64
}

// New creates an index with an empty generation zero for every variant.
func New(variantIDs ...string) *Index {
	x := &Index{
		order: make([]string, 0, len(variantIDs)),
		slots: make(map[string]*slot, len(variantIDs)),
	}
	for _, id := range variantIDs {
		if _, dup := x.slots[id]; dup {
			continue
		}
		s := &slot{}
		s.snap.Store(newSnapshot(id, 0, nil))
		x.slots[id] = s
		x.order = append(x.order, id)
	}
	return x
}

// Variants returns the variant ids in construction order.
func (x *Index) Variants() []string {
	return append([]string(nil), x.order...)
}

// Refresh publishes records as the new generation of a variant and returns
// its generation number.
func (x *Index) Refresh(variantID string, records []storage.Record) (uint64, error) {
	s, ok := x.slots[variantID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, variantID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return x.publish(s, variantID, records), nil
}

// Reload runs load and publishes its result while holding the variant's
// refresh lock, so overlapping reloads of one variant apply in order.
func (x *Index) Reload(ctx context.Context, variantID string, load func(context.Context) []storage.Record) (uint64, error) {
	s, ok := x.slots[variantID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, variantID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := load(ctx)
	if err := ctx.Err(); err != nil {
		// Keep the previous generation rather than publishing a partial read.
		return s.snap.Load().Generation, err
	}
	return x.publish(s, variantID, records), nil
}

func (x *Index) publish(s *slot, variantID string, records []storage.Record) uint64 {
	gen := x.gen.Add(1)
	s.snap.Store(newSnapshot(variantID, gen, records))
	return gen
}

// Snapshot returns the current snapshot of a variant, or nil for an unknown
// variant.
func (x *Index) Snapshot(variantID string) *Snapshot {
	s, ok := x.slots[variantID]
	if !ok {
		return nil
	}
	return s.snap.Load()
}

// All returns the current snapshot of every variant in construction order.
func (x *Index) All() []*Snapshot {
	snaps := make([]*Snapshot, 0, len(x.order))
	for _, id := range x.order {
		snaps = append(snaps, x.slots[id].snap.Load())
	}
	return snaps
}

// Lookup resolves a result id of any variant.
func (x *Index) Lookup(id string) (storage.Record, bool) {
	variantID, _, ok := strings.Cut(id, ":")
	if !ok {
		return storage.Record{}, false
	}
	return x.Snapshot(variantID).Lookup(id)
}

// Count returns the total number of records across variants.
func (x *Index) Count() int {
	n := 0
	for _, s := range x.All() {
		n += s.Len()
	}
	return n
}
