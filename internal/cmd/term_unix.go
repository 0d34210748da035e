//go:build !windows

package cmd

import (
	"os"

	"golang.org/x/sys/unix"
)

// stdoutColumns returns the column count of the terminal on stdout, or 0.
func stdoutColumns() int {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0
	}
	return int(ws.Col)
}
