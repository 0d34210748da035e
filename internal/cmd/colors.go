package cmd

import (
	"os"
	"strconv"

	"github.com/muesli/termenv"
)

// ANSI escapes for terminal output, emptied when colors are off.
var (
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[0;33m"
	colorDim    = "\033[2m"
	colorBold   = "\033[1m"
	colorReset  = "\033[0m"
)

// colorMode is set by --color: auto, always or never.
var colorMode = "auto"

func init() {
	if shouldDisableColors() {
		disableColors()
	}
}

// applyColorMode enables or disables colors according to colorMode.
func applyColorMode() {
	switch colorMode {
	case "always":
		enableColors()
	case "never":
		disableColors()
	default:
		if shouldDisableColors() || termenv.NewOutput(os.Stdout).ColorProfile() == termenv.Ascii {
			disableColors()
		} else {
			enableColors()
		}
	}
}

func enableColors() {
	colorGreen = "\033[0;32m"
	colorYellow = "\033[0;33m"
	colorDim = "\033[2m"
	colorBold = "\033[1m"
	colorReset = "\033[0m"
}

func disableColors() {
	colorGreen = ""
	colorYellow = ""
	colorDim = ""
	colorBold = ""
	colorReset = ""
}

// shouldDisableColors honors NO_COLOR (https://no-color.org/) and TERM=dumb.
func shouldDisableColors() bool {
	return os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb"
}

// terminalWidth returns the width of the terminal on stdout, falling back to
// $COLUMNS and then 80.
func terminalWidth() int {
	if w := stdoutColumns(); w > 0 {
		return w
	}
	if w, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && w > 0 {
		return w
	}
	return 80
}
