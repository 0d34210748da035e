package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/runger/wsprovider/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show the effective configuration",
	GroupID: groupSetup,
	Long: `Show the effective configuration as YAML: defaults, the config file and
environment overrides (WSPROVIDER_LOG_LEVEL, WSPROVIDER_DEBUG,
WSPROVIDER_BUS_NAME) combined.

Configuration is stored in ~/.config/wsprovider/config.yaml (XDG compliant).

Examples:
  wsprovider config          # Print effective configuration
  wsprovider config init     # Write the defaults to the config file`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultPaths().ConfigFile()
	}
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().SaveToFile(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
