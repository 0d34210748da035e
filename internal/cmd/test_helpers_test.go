package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	os.Stdout = w

	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	fn()
	_ = w.Close()
	os.Stdout = old
	out := <-outC
	_ = r.Close()
	return out
}

// setupWorkspaces isolates the XDG environment in a temp dir and writes a
// config with one legacy-json variant "code" whose storage lists folders
// below ~/src. It returns the home directory.
func setupWorkspaces(t *testing.T, folders ...string) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	t.Setenv("XDG_DATA_DIRS", filepath.Join(home, "system"))
	t.Setenv("NO_COLOR", "1")

	entries := make([]string, len(folders))
	for i, f := range folders {
		entries[i] = fmt.Sprintf(`{"folderUri": "file://%s/src/%s"}`, home, f)
	}
	storage := filepath.Join(home, "storage.json")
	doc := `{"openedPathsList": {"entries": [` + strings.Join(entries, ",") + `]}}`
	if err := os.WriteFile(storage, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile storage error: %v", err)
	}

	cfgPath := filepath.Join(home, "config.yaml")
	cfg := fmt.Sprintf(`daemon:
  log_level: error
launch:
  disable_scope: true
variants:
  - id: code
    name: Code
    desktop_id: code.desktop
    command: "true {workspace}"
    backend: legacy-json
    storage_path: %q
`, storage)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("WriteFile config error: %v", err)
	}

	old := configFile
	configFile = cfgPath
	t.Cleanup(func() { configFile = old })

	return home
}

func withContext(t *testing.T) {
	t.Helper()
	for _, c := range rootCmd.Commands() {
		c.SetContext(context.Background())
	}
}
