package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runger/wsprovider/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the search provider daemon",
	GroupID: groupSetup,
	Long: `Run the search provider daemon on the session bus.

The daemon is normally started by D-Bus activation when GNOME Shell first
queries one of the providers, and exits after an idle period. Only one
instance can own the bus name; a second one exits without exporting anything.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var reloadCmd = &cobra.Command{
	Use:     "reload",
	Short:   "Ask the running daemon to re-read recent workspaces",
	GroupID: groupCore,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := daemon.RequestReload(cmd.Context(), cfg.Daemon.BusName); err != nil {
			return err
		}
		fmt.Println("Reload requested.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show daemon status",
	GroupID: groupSetup,
	Args:    cobra.NoArgs,
	RunE:    runStatus,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(statusCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	daemon.Version = Version

	err = daemon.Run(context.Background(), &daemon.ServerConfig{
		Config: cfg,
		Paths:  paths,
		Logger: logger,
	})
	if errors.Is(err, daemon.ErrNameTaken) {
		logger.Info("another instance owns the bus name, exiting", "bus_name", cfg.Daemon.BusName)
	}
	return err
}

func runStatus(cmd *cobra.Command, args []string) error {
	applyColorMode()

	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("%sDaemon:%s\n", colorBold, colorReset)
	fmt.Printf("  Bus name: %s\n", cfg.Daemon.BusName)
	running, err := daemon.IsRunning(cmd.Context(), cfg.Daemon.BusName)
	switch {
	case err != nil:
		fmt.Printf("  Status:   %sunknown%s (%v)\n", colorYellow, colorReset, err)
	case running:
		fmt.Printf("  Status:   %srunning%s\n", colorGreen, colorReset)
	default:
		fmt.Printf("  Status:   %snot running%s (started on demand)\n", colorDim, colorReset)
	}

	fmt.Printf("\n%sConfiguration:%s\n", colorBold, colorReset)
	file := configFile
	if file == "" {
		file = paths.ConfigFile()
	}
	if _, err := os.Stat(file); err == nil {
		fmt.Printf("  File:     %s\n", file)
	} else {
		fmt.Printf("  File:     %s (not found, using defaults)\n", file)
	}
	if d := cfg.IdleTimeout(); d > 0 {
		fmt.Printf("  Idle:     exit after %s\n", d)
	} else {
		fmt.Printf("  Idle:     never exit\n")
	}
	fmt.Printf("  Files:    %s\n", formatBool(cfg.Search.IncludeFiles))
	fmt.Printf("  Watch:    %s\n", formatBool(cfg.Watch.Enabled))
	fmt.Printf("  Scopes:   %s\n", formatBool(!cfg.Launch.DisableScope))

	fmt.Printf("\n%sSearch providers:%s\n", colorBold, colorReset)
	installed := installedProviders(cfg, paths)
	if len(installed) == 0 {
		fmt.Printf("  %snot installed%s, run 'wsprovider install'\n", colorDim, colorReset)
	}
	for _, path := range installed {
		fmt.Printf("  - %s\n", path)
	}

	return nil
}

func formatBool(b bool) string {
	if b {
		return colorGreen + "enabled" + colorReset
	}
	return colorDim + "disabled" + colorReset
}
