// Package variant resolves the configured editor flavours into the runtime
// descriptions the daemon works with.
package variant

import (
	"path/filepath"
	"strings"

	"github.com/runger/wsprovider/internal/config"
	"github.com/runger/wsprovider/internal/storage"
)

// Variant is one installed editor flavour. It is immutable after startup.
type Variant struct {
	ID        string
	Name      string
	DesktopID string
	Command   string
	Backend   storage.Backend
}

// AppID returns the desktop application id, i.e. the desktop file name
// without its .desktop suffix.
func (v *Variant) AppID() string {
	if v.DesktopID == "" {
		return v.ID
	}
	return strings.TrimSuffix(v.DesktopID, ".desktop")
}

// FromConfig builds the enabled variants of cfg, in configuration order.
func FromConfig(cfg *config.Config, paths *config.Paths) []*Variant {
	variants := make([]*Variant, 0, len(cfg.Variants))
	for _, vc := range cfg.Variants {
		if vc.Disabled {
			continue
		}
		variants = append(variants, fromVariantConfig(vc, paths))
	}
	return variants
}

func fromVariantConfig(vc config.VariantConfig, paths *config.Paths) *Variant {
	var backend storage.Backend
	switch {
	case vc.StoragePath != "":
		backend = storage.Backend{Kind: vc.Backend, Path: vc.StoragePath}
	case filepath.IsAbs(vc.ConfigDir):
		backend = storage.BackendFor(vc.Backend, vc.ConfigDir)
	default:
		backend = storage.BackendFor(vc.Backend, paths.EditorConfigDir(vc.ConfigDir))
	}

	name := vc.Name
	if name == "" {
		name = vc.ID
	}

	return &Variant{
		ID:        vc.ID,
		Name:      name,
		DesktopID: vc.DesktopID,
		Command:   vc.Command,
		Backend:   backend,
	}
}

// Find returns the variant with the given id.
func Find(variants []*Variant, id string) (*Variant, bool) {
	for _, v := range variants {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

// IDs returns the ids of variants in order.
func IDs(variants []*Variant) []string {
	ids := make([]string, len(variants))
	for i, v := range variants {
		ids[i] = v.ID
	}
	return ids
}
