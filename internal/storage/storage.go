// Package storage reads recently opened workspaces from the on-disk state of
// VS Code flavoured editors.
//
// Two storage shapes exist in the wild: the legacy storage.json document and
// the global state database (state.vscdb), a SQLite key-value table whose
// history.recentlyOpenedPathsList row holds a JSON document. Both are read
// through Read, which dispatches on Backend.Kind.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
)

// Backend kinds.
const (
	KindLegacyJSON   = "legacy-json"
	KindSQLiteGlobal = "sqlite-global"
)

// ErrUnknownBackend is returned by Read for an unsupported Backend.Kind.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Backend selects the storage shape and location of one editor variant.
type Backend struct {
	Kind string
	Path string
}

// BackendFor returns the default backend location inside an editor config
// directory such as ~/.config/Code.
func BackendFor(kind, configDir string) Backend {
	switch kind {
	case KindLegacyJSON:
		return Backend{Kind: kind, Path: filepath.Join(configDir, "storage.json")}
	default:
		return Backend{Kind: kind, Path: filepath.Join(configDir, "User", "globalStorage", "state.vscdb")}
	}
}

// EntryKind tells what a recent entry points to.
type EntryKind string

const (
	EntryFolder    EntryKind = "folder"
	EntryWorkspace EntryKind = "workspace" // multi-root .code-workspace descriptor
	EntryFile      EntryKind = "file"
)

// Entry is one recently opened item as stored by the editor.
type Entry struct {
	URI   string
	Label string
	Kind  EntryKind
}

// Record is a searchable recent workspace of one variant.
type Record struct {
	ID        string    // "<variant>:<uri>", stable across refreshes
	Name      string    // Display name
	URI       string    // Normalized URI
	Kind      EntryKind // folder, workspace or file
	VariantID string
}

// Options controls how entries become records.
type Options struct {
	IncludeFiles bool
}

// Read returns the entries of a backend, most recent first.
// A missing source yields an error wrapping fs.ErrNotExist.
func Read(ctx context.Context, b Backend) ([]Entry, error) {
	switch b.Kind {
	case KindLegacyJSON:
		return readLegacyJSON(ctx, b.Path)
	case KindSQLiteGlobal:
		return readGlobalDB(ctx, b.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, b.Kind)
	}
}

// Load reads a variant's backend and converts its entries to records.
// Source-level failures never escape: they are logged and yield an empty
// list, since an editor that is not installed simply has no storage.
func Load(ctx context.Context, logger *slog.Logger, variantID string, b Backend, opts Options) []Record {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := Read(ctx, b)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no storage for variant", "variant", variantID, "path", b.Path)
		} else {
			logger.Warn("failed to read workspace storage", "variant", variantID, "path", b.Path, "error", err)
		}
		return []Record{}
	}

	records := Records(variantID, entries, opts)
	logger.Debug("loaded recent workspaces",
		"variant", variantID,
		"entries", len(entries),
		"records", len(records),
	)
	return records
}

// Records converts entries into records, dropping files unless requested and
// keeping only the first (most recent) occurrence of each URI.
func Records(variantID string, entries []Entry, opts Options) []Record {
	records := make([]Record, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))

	for _, e := range entries {
		if e.Kind == EntryFile && !opts.IncludeFiles {
			continue
		}
		uri, ok := NormalizeURI(e.URI)
		if !ok {
			continue
		}
		if _, dup := seen[uri]; dup {
			continue
		}
		seen[uri] = struct{}{}

		name := strings.TrimSpace(e.Label)
		if name == "" {
			name = DisplayName(uri)
		}
		records = append(records, Record{
			ID:        RecordID(variantID, uri),
			Name:      name,
			URI:       uri,
			Kind:      e.Kind,
			VariantID: variantID,
		})
	}

	return records
}

// RecordID derives the result id of a URI within a variant.
func RecordID(variantID, uri string) string {
	return variantID + ":" + uri
}

// NormalizeURI validates a stored URI or path. Absolute paths become file
// URIs; anything without a scheme or usable location is rejected.
func NormalizeURI(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if strings.HasPrefix(raw, "/") {
		u := url.URL{Scheme: "file", Path: filepath.Clean(raw)}
		return u.String(), true
	}

	p, ok := splitURI(raw)
	if !ok || len(p.scheme) == 1 {
		// A one letter scheme is a Windows drive, not a URI.
		return "", false
	}
	if p.path == "" && p.authority == "" {
		return "", false
	}
	return raw, true
}
