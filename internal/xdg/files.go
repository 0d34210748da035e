package xdg

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

func init() {
	// Desktop-style files use "key=value" without padding.
	ini.PrettyFormat = false
}

// SearchProvider is a GNOME Shell search provider descriptor, read by the
// shell from <data dir>/gnome-shell/search-providers.
type SearchProvider struct {
	DesktopID  string
	BusName    string
	ObjectPath string
	Version    int
	// DefaultDisabled keeps the provider off until enabled in Settings.
	DefaultDisabled bool
}

// SearchProviderDir returns the descriptor directory below a data dir.
func SearchProviderDir(dataDir string) string {
	return filepath.Join(dataDir, "gnome-shell", "search-providers")
}

// Write writes the descriptor to path, creating parent directories.
func (p SearchProvider) Write(path string) error {
	f := ini.Empty()
	sec, err := f.NewSection("Shell Search Provider")
	if err != nil {
		return err
	}
	sec.Key("DesktopId").SetValue(p.DesktopID)
	sec.Key("BusName").SetValue(p.BusName)
	sec.Key("ObjectPath").SetValue(p.ObjectPath)
	sec.Key("Version").SetValue(fmt.Sprint(p.Version))
	if p.DefaultDisabled {
		sec.Key("DefaultDisabled").SetValue("true")
	}
	return saveIni(f, path)
}

// LoadSearchProvider reads a descriptor written by Write or by hand.
func LoadSearchProvider(path string) (*SearchProvider, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read search provider %s: %w", path, err)
	}
	sec, err := f.GetSection("Shell Search Provider")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &SearchProvider{
		DesktopID:       sec.Key("DesktopId").String(),
		BusName:         sec.Key("BusName").String(),
		ObjectPath:      sec.Key("ObjectPath").String(),
		Version:         sec.Key("Version").MustInt(0),
		DefaultDisabled: sec.Key("DefaultDisabled").MustBool(false),
	}, nil
}

// DBusService is a session bus activation file: the bus starts Exec when a
// message is sent to Name and nobody owns it.
type DBusService struct {
	Name string
	Exec string
	// SystemdService, if set, lets systemd start the unit instead of Exec.
	SystemdService string
}

// DBusServiceDir returns the session service directory below a data dir.
func DBusServiceDir(dataDir string) string {
	return filepath.Join(dataDir, "dbus-1", "services")
}

// Write writes the service file to path, creating parent directories.
func (s DBusService) Write(path string) error {
	f := ini.Empty()
	sec, err := f.NewSection("D-BUS Service")
	if err != nil {
		return err
	}
	sec.Key("Name").SetValue(s.Name)
	sec.Key("Exec").SetValue(s.Exec)
	if s.SystemdService != "" {
		sec.Key("SystemdService").SetValue(s.SystemdService)
	}
	return saveIni(f, path)
}

func saveIni(f *ini.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
