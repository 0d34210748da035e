// Package xdg finds and reads freedesktop.org desktop entries.
package xdg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/ini.v1"
)

const desktopEntrySection = "Desktop Entry"

// ErrNotFound is returned when no directory holds the requested entry.
var ErrNotFound = errors.New("desktop entry not found")

// DesktopEntry is the subset of a desktop file we use.
type DesktopEntry struct {
	ID   string // Desktop file id, e.g. code.desktop
	Path string
	Name string
	Icon string // Themed icon name or absolute path
	Exec string
}

// LoadDesktopEntry reads a desktop file.
func LoadDesktopEntry(path string) (*DesktopEntry, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		// Values such as Exec and Comment may contain '#' and ';'.
		IgnoreInlineComment: true,
		AllowShadows:        false,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read desktop entry %s: %w", path, err)
	}

	section, err := f.GetSection(desktopEntrySection)
	if err != nil {
		return nil, fmt.Errorf("%s has no [%s] group: %w", path, desktopEntrySection, err)
	}

	return &DesktopEntry{
		ID:   filepath.Base(path),
		Path: path,
		Name: section.Key("Name").String(),
		Icon: section.Key("Icon").String(),
		Exec: section.Key("Exec").String(),
	}, nil
}

// FindDesktopEntry returns the first readable entry named desktopID in dirs.
func FindDesktopEntry(dirs []string, desktopID string) (*DesktopEntry, error) {
	for _, dir := range dirs {
		path := filepath.Join(dir, desktopID)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		entry, err := LoadDesktopEntry(path)
		if err != nil {
			continue
		}
		entry.ID = desktopID
		return entry, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, desktopID)
}

// Catalog caches desktop entry lookups, misses included. Entries are looked
// up once per process: desktop files rarely change while the daemon runs.
type Catalog struct {
	dirs []string

	mu      sync.Mutex
	entries map[string]*DesktopEntry
}

// NewCatalog creates a catalog searching dirs in order.
func NewCatalog(dirs []string) *Catalog {
	return &Catalog{
		dirs:    dirs,
		entries: make(map[string]*DesktopEntry),
	}
}

// Lookup returns the entry for desktopID, or nil if there is none.
func (c *Catalog) Lookup(desktopID string) *DesktopEntry {
	if desktopID == "" {
		return nil
	}

	c.mu.Lock()
	entry, ok := c.entries[desktopID]
	c.mu.Unlock()
	if ok {
		return entry
	}

	// Files are read unlocked; concurrent misses may both search, the
	// first stored result wins.
	entry, err := FindDesktopEntry(c.dirs, desktopID)
	if err != nil {
		entry = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.entries[desktopID]; ok {
		return cached
	}
	c.entries[desktopID] = entry
	return entry
}

// Icon returns the icon of desktopID, or "" if unknown.
func (c *Catalog) Icon(desktopID string) string {
	if entry := c.Lookup(desktopID); entry != nil {
		return entry.Icon
	}
	return ""
}
