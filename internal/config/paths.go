// Package config provides configuration management for wsprovider.
package config

import (
	"os"
	"path/filepath"
)

// Paths holds the XDG base directories wsprovider reads from and writes to.
type Paths struct {
	// Home is the user's home directory.
	Home string

	// ConfigHome is $XDG_CONFIG_HOME (~/.config). Editor configuration
	// directories live below it.
	ConfigHome string

	// ConfigDir is the directory for our own configuration (~/.config/wsprovider)
	ConfigDir string

	// DataHome is $XDG_DATA_HOME (~/.local/share).
	DataHome string

	// DataDirs is $XDG_DATA_DIRS, searched after DataHome for desktop entries.
	DataDirs []string

	// CacheDir is the directory for cache files (~/.cache/wsprovider)
	CacheDir string
}

// DefaultPaths returns the default paths based on the XDG Base Directory spec.
func DefaultPaths() *Paths {
	home := homeDir()

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		cacheHome = filepath.Join(home, ".cache")
	}

	var dataDirs []string
	if v := os.Getenv("XDG_DATA_DIRS"); v != "" {
		for _, dir := range filepath.SplitList(v) {
			if dir != "" {
				dataDirs = append(dataDirs, dir)
			}
		}
	}
	if len(dataDirs) == 0 {
		dataDirs = []string{"/usr/local/share", "/usr/share"}
	}

	return &Paths{
		Home:       home,
		ConfigHome: configHome,
		ConfigDir:  filepath.Join(configHome, "wsprovider"),
		DataHome:   dataHome,
		DataDirs:   dataDirs,
		CacheDir:   filepath.Join(cacheHome, "wsprovider"),
	}
}

// ConfigFile returns the path to the main configuration file.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// ApplicationDirs returns the directories searched for desktop entries,
// most specific first.
func (p *Paths) ApplicationDirs() []string {
	dirs := make([]string, 0, len(p.DataDirs)+1)
	dirs = append(dirs, filepath.Join(p.DataHome, "applications"))
	for _, d := range p.DataDirs {
		dirs = append(dirs, filepath.Join(d, "applications"))
	}
	return dirs
}

// EditorConfigDir returns the configuration directory of an editor flavour,
// e.g. "~/.config/Code - OSS".
func (p *Paths) EditorConfigDir(name string) string {
	return filepath.Join(p.ConfigHome, name)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}
