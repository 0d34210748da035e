package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/runger/wsprovider/internal/config"
	"github.com/runger/wsprovider/internal/daemon"
	"github.com/runger/wsprovider/internal/searchprovider"
	"github.com/runger/wsprovider/internal/variant"
	"github.com/runger/wsprovider/internal/xdg"
)

var (
	installDataDir         string
	installExec            string
	installDefaultDisabled bool
)

var installCmd = &cobra.Command{
	Use:     "install",
	Short:   "Register the search providers with GNOME Shell",
	GroupID: groupSetup,
	Long: `Register one GNOME Shell search provider per enabled editor variant and a
D-Bus activation file that starts the daemon on demand.

Files written below the data directory:
  gnome-shell/search-providers/<bus name>.<variant>.ini
  dbus-1/services/<bus name>.service

GNOME Shell reads search providers from the system data directories only, so
a per-user install usually needs --data-dir /usr/local/share (as root) for
the descriptors to be picked up.

Examples:
  wsprovider install
  sudo wsprovider install --data-dir /usr/local/share --exec "/usr/local/bin/wsprovider serve"`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:     "uninstall",
	Short:   "Remove the search provider registration",
	GroupID: groupSetup,
	Args:    cobra.NoArgs,
	RunE:    runUninstall,
}

func init() {
	installCmd.Flags().StringVar(&installDataDir, "data-dir", "", "data directory to install into (default $XDG_DATA_HOME)")
	installCmd.Flags().StringVar(&installExec, "exec", "", "command the bus runs to start the daemon (default: this binary with 'serve')")
	installCmd.Flags().BoolVar(&installDefaultDisabled, "default-disabled", false, "keep the providers disabled until enabled in Settings")
	uninstallCmd.Flags().StringVar(&installDataDir, "data-dir", "", "data directory to remove from (default $XDG_DATA_HOME)")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
}

// providerFile returns the descriptor path of a variant below dataDir.
func providerFile(dataDir, busName string, v *variant.Variant) string {
	return filepath.Join(xdg.SearchProviderDir(dataDir), fmt.Sprintf("%s.%s.ini", busName, v.ID))
}

// serviceFile returns the activation file path below dataDir.
func serviceFile(dataDir, busName string) string {
	return filepath.Join(xdg.DBusServiceDir(dataDir), busName+".service")
}

func runInstall(cmd *cobra.Command, args []string) error {
	applyColorMode()

	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	variants, err := selectVariants(cfg, paths, "")
	if err != nil {
		return err
	}

	dataDir := installDataDir
	if dataDir == "" {
		dataDir = paths.DataHome
	}
	execLine, err := serveCommand(installExec)
	if err != nil {
		return err
	}

	written, err := installFiles(dataDir, execLine, cfg.Daemon.BusName, variants, installDefaultDisabled)
	for _, path := range written {
		fmt.Printf("Wrote %s\n", path)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%sInstalled successfully!%s\n", colorGreen, colorReset)
	fmt.Printf("Log out and back in (or restart GNOME Shell) to load the providers.\n")
	return nil
}

// serveCommand returns the Exec line of the activation file.
func serveCommand(override string) (string, error) {
	if override != "" {
		if _, err := shlex.Split(override); err != nil {
			return "", fmt.Errorf("invalid --exec: %w", err)
		}
		return override, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot determine executable, pass --exec: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe + " serve", nil
}

// installFiles writes one descriptor per variant and the activation file. It
// returns the paths written so far, also on error.
func installFiles(dataDir, execLine, busName string, variants []*variant.Variant, defaultDisabled bool) ([]string, error) {
	var written []string
	for _, v := range variants {
		path := providerFile(dataDir, busName, v)
		p := xdg.SearchProvider{
			DesktopID:       v.DesktopID,
			BusName:         busName,
			ObjectPath:      string(searchprovider.ObjectPath(daemon.ObjectPathBase, v.ID)),
			Version:         2,
			DefaultDisabled: defaultDisabled,
		}
		if err := p.Write(path); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	path := serviceFile(dataDir, busName)
	if err := (xdg.DBusService{Name: busName, Exec: execLine}).Write(path); err != nil {
		return written, err
	}
	return append(written, path), nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	applyColorMode()

	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}

	dataDir := installDataDir
	if dataDir == "" {
		dataDir = paths.DataHome
	}

	// Every configured variant, disabled ones included, may have been
	// installed earlier.
	all := make([]*variant.Variant, 0, len(cfg.Variants))
	for _, vc := range cfg.Variants {
		all = append(all, &variant.Variant{ID: vc.ID})
	}

	removed, err := uninstallFiles(dataDir, cfg.Daemon.BusName, all)
	for _, path := range removed {
		fmt.Printf("Removed %s\n", path)
	}
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		fmt.Println("No search provider registration found.")
		return nil
	}

	fmt.Printf("\n%sUninstalled successfully!%s\n", colorGreen, colorReset)
	return nil
}

// uninstallFiles removes the files installFiles writes. Missing files are
// not an error.
func uninstallFiles(dataDir, busName string, variants []*variant.Variant) ([]string, error) {
	paths := make([]string, 0, len(variants)+1)
	for _, v := range variants {
		paths = append(paths, providerFile(dataDir, busName, v))
	}
	paths = append(paths, serviceFile(dataDir, busName))

	var removed []string
	for _, path := range paths {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = append(removed, path)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return removed, nil
}

// installedProviders returns the descriptors of enabled variants found in
// the user and system data directories.
func installedProviders(cfg *config.Config, paths *config.Paths) []string {
	dirs := append([]string{paths.DataHome}, paths.DataDirs...)
	var found []string
	for _, v := range variant.FromConfig(cfg, paths) {
		for _, dir := range dirs {
			path := providerFile(dir, cfg.Daemon.BusName, v)
			if _, err := os.Stat(path); err == nil {
				found = append(found, path)
				break
			}
		}
	}
	return found
}
