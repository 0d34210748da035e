package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information, set with -ldflags "-X" at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command groups shown in help output.
const (
	groupCore  = "core"
	groupSetup = "setup"
)

// configFile overrides the default configuration file location.
var configFile string

var rootCmd = &cobra.Command{
	Use:   "wsprovider",
	Short: "recent VS Code workspaces in GNOME Shell search",
	Long: `wsprovider - recent VS Code workspaces in GNOME Shell search
  - one search provider per editor flavour (Code, Code - OSS, VSCodium, ...)
  - opens the selected folder or workspace in the right editor`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupCore, Title: "Workspaces:"},
		&cobra.Group{ID: groupSetup, Title: "Setup:"},
	)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (default $XDG_CONFIG_HOME/wsprovider/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print version information",
	GroupID: groupSetup,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wsprovider %s (%s, built %s, %s)\n", Version, GitCommit, BuildDate, runtime.Version())
	},
}
