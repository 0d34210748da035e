package launch

import (
	"errors"
	"fmt"

	"github.com/google/shlex"

	"github.com/runger/wsprovider/internal/storage"
)

// WorkspaceToken marks where workspace arguments go in a command template.
const WorkspaceToken = "{workspace}"

// ErrEmptyCommand is returned for a template without a program.
var ErrEmptyCommand = errors.New("empty launch command")

// Argv expands a command template for a record. The template is split with
// POSIX shell rules. A nil record (launching the editor without a workspace)
// drops the token. When the template has no token the workspace arguments
// are appended.
func Argv(template string, r *storage.Record) ([]string, error) {
	words, err := shlex.Split(template)
	if err != nil {
		return nil, fmt.Errorf("failed to parse launch command %q: %w", template, err)
	}

	var ws []string
	if r != nil {
		ws = workspaceArgs(r)
	}

	argv := make([]string, 0, len(words)+len(ws))
	replaced := false
	for _, w := range words {
		if w == WorkspaceToken {
			argv = append(argv, ws...)
			replaced = true
			continue
		}
		argv = append(argv, w)
	}
	if !replaced {
		argv = append(argv, ws...)
	}

	if len(argv) == 0 || argv[0] == "" || (r != nil && len(argv) == len(ws)) {
		return nil, fmt.Errorf("%w: %q", ErrEmptyCommand, template)
	}
	return argv, nil
}

func workspaceArgs(r *storage.Record) []string {
	switch r.Kind {
	case storage.EntryFolder:
		return []string{"--folder-uri", r.URI}
	default:
		// Workspace descriptors are opened like files.
		return []string{"--file-uri", r.URI}
	}
}
