package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// legacyDocument is the part of storage.json we care about.
type legacyDocument struct {
	OpenedPathsList *openedPathsList `json:"openedPathsList"`
}

// openedPathsList covers every generation of the recent list. Newer editors
// write entries; older ones wrote workspaces3 or workspaces2.
type openedPathsList struct {
	Entries     []json.RawMessage `json:"entries"`
	Workspaces3 []json.RawMessage `json:"workspaces3"`
	Workspaces2 []json.RawMessage `json:"workspaces2"`
	Files2      []json.RawMessage `json:"files2"`
}

// recentEntry is one element of openedPathsList.entries.
type recentEntry struct {
	FolderURI string `json:"folderUri"`
	FileURI   string `json:"fileUri"`
	Workspace *struct {
		ID         string `json:"id"`
		ConfigPath string `json:"configPath"`
	} `json:"workspace"`
	Label string `json:"label"`
}

// legacyWorkspace is the object form of workspaces3/workspaces2 items.
type legacyWorkspace struct {
	ID            string `json:"id"`
	ConfigURIPath string `json:"configURIPath"`
	ConfigPath    string `json:"configPath"`
}

func readLegacyJSON(ctx context.Context, path string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc legacyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if doc.OpenedPathsList == nil {
		return []Entry{}, nil
	}

	return doc.OpenedPathsList.toEntries(), nil
}

// parseRecentList decodes the {entries: [...]} document shared by both
// backends.
func parseRecentList(data []byte) ([]Entry, error) {
	var list openedPathsList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse recently opened paths: %w", err)
	}
	return list.toEntries(), nil
}

func (l *openedPathsList) toEntries() []Entry {
	if len(l.Entries) > 0 {
		return decodeEntries(l.Entries)
	}

	var entries []Entry
	switch {
	case len(l.Workspaces3) > 0:
		entries = decodeLegacyWorkspaces(l.Workspaces3)
	case len(l.Workspaces2) > 0:
		entries = decodeLegacyWorkspaces(l.Workspaces2)
	}
	for _, raw := range l.Files2 {
		var uri string
		if json.Unmarshal(raw, &uri) == nil && uri != "" {
			entries = append(entries, Entry{URI: uri, Kind: EntryFile})
		}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries
}

// decodeEntries decodes each element on its own so that one malformed entry
// does not affect its siblings.
func decodeEntries(raws []json.RawMessage) []Entry {
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e recentEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		switch {
		case e.Workspace != nil && e.Workspace.ConfigPath != "":
			entries = append(entries, Entry{URI: e.Workspace.ConfigPath, Label: e.Label, Kind: EntryWorkspace})
		case e.FolderURI != "":
			entries = append(entries, Entry{URI: e.FolderURI, Label: e.Label, Kind: EntryFolder})
		case e.FileURI != "":
			entries = append(entries, Entry{URI: e.FileURI, Label: e.Label, Kind: EntryFile})
		}
	}
	return entries
}

// decodeLegacyWorkspaces handles items that are either a plain folder
// URI/path string or a workspace object.
func decodeLegacyWorkspaces(raws []json.RawMessage) []Entry {
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var folder string
		if err := json.Unmarshal(raw, &folder); err == nil {
			if folder != "" {
				entries = append(entries, Entry{URI: folder, Kind: EntryFolder})
			}
			continue
		}

		var ws legacyWorkspace
		if err := json.Unmarshal(raw, &ws); err != nil {
			continue
		}
		switch {
		case ws.ConfigURIPath != "":
			entries = append(entries, Entry{URI: ws.ConfigURIPath, Kind: EntryWorkspace})
		case ws.ConfigPath != "":
			entries = append(entries, Entry{URI: ws.ConfigPath, Kind: EntryWorkspace})
		}
	}
	return entries
}
