package picker

import (
	"context"
	"fmt"

	"github.com/runger/wsprovider/internal/index"
	"github.com/runger/wsprovider/internal/match"
	"github.com/runger/wsprovider/internal/storage"
)

// Provider is the interface for data sources that supply items to the picker.
type Provider interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// Request describes what items the picker wants from a Provider.
type Request struct {
	RequestID uint64 // Monotonically increasing, for stale response detection
	Query     string // Search filter
	TabID     string // Active tab identifier (a variant id)
	Limit     int
	Offset    int
}

// Response carries items back from a Provider.
type Response struct {
	RequestID uint64 // Must match Request.RequestID to be accepted
	Items     []Item
	AtEnd     bool // No more pages available
}

// Item is one pickable workspace.
type Item struct {
	ID     string // Result id, "<variant>:<uri>"
	Name   string // Display name
	Detail string // Location shown next to the name
}

// IndexProvider serves items from a workspace index. An empty query lists
// the variant's workspaces most recent first; otherwise they are ranked like
// search provider results.
type IndexProvider struct {
	Index *index.Index
	Home  string
}

// Fetch implements Provider.
func (p *IndexProvider) Fetch(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	snap := p.Index.Snapshot(req.TabID)
	if snap == nil {
		return Response{}, fmt.Errorf("%w: %s", index.ErrUnknownVariant, req.TabID)
	}

	records := snap.Records
	if terms := match.Terms([]string{req.Query}); len(terms) > 0 {
		matches := match.Rank(snap.Records, terms)
		records = make([]storage.Record, len(matches))
		for i, m := range matches {
			records[i] = m.Record
		}
	}

	start := req.Offset
	if start < 0 {
		start = 0
	}
	if start > len(records) {
		start = len(records)
	}
	end := len(records)
	if req.Limit > 0 && start+req.Limit < end {
		end = start + req.Limit
	}

	items := make([]Item, 0, end-start)
	for _, r := range records[start:end] {
		items = append(items, Item{
			ID:     r.ID,
			Name:   r.Name,
			Detail: storage.Describe(r.URI, p.Home),
		})
	}

	return Response{
		RequestID: req.RequestID,
		Items:     items,
		AtEnd:     end == len(records),
	}, nil
}
