package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/runger/wsprovider/internal/config"
	"github.com/runger/wsprovider/internal/variant"
	"github.com/runger/wsprovider/internal/xdg"
)

var variantsCmd = &cobra.Command{
	Use:     "variants",
	Short:   "Show the configured editor variants and their storage",
	GroupID: groupSetup,
	Args:    cobra.NoArgs,
	RunE:    runVariants,
}

func init() {
	variantsCmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")
	rootCmd.AddCommand(variantsCmd)
}

func runVariants(cmd *cobra.Command, args []string) error {
	applyColorMode()

	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	variants, err := selectVariants(cfg, paths, "")
	if err != nil {
		return err
	}
	idx, err := loadIndex(cmd.Context(), cfg, variants, newLogger(cfg))
	if err != nil {
		return err
	}

	catalog := xdg.NewCatalog(paths.ApplicationDirs())
	for i, v := range variants {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%s%s%s %s(%s)%s\n", colorBold, v.Name, colorReset, colorDim, v.ID, colorReset)
		fmt.Printf("  Storage:  %s %s\n", v.Backend.Path, describeStorage(v.Backend.Path))
		fmt.Printf("  Backend:  %s\n", v.Backend.Kind)
		fmt.Printf("  Command:  %s\n", v.Command)
		fmt.Printf("  Desktop:  %s\n", describeDesktopEntry(catalog, v))
		fmt.Printf("  Records:  %s\n", humanize.Comma(int64(idx.Snapshot(v.ID).Len())))
	}

	if disabled := disabledVariants(cfg); len(disabled) > 0 {
		fmt.Printf("\n%sDisabled:%s %v\n", colorDim, colorReset, disabled)
	}
	return nil
}

// describeStorage says whether a storage file exists and when it changed.
func describeStorage(path string) string {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return colorDim + "(missing, editor not installed or never used)" + colorReset
	case err != nil:
		return colorYellow + "(" + err.Error() + ")" + colorReset
	}
	return fmt.Sprintf("%s(%s, changed %s)%s",
		colorDim, humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()), colorReset)
}

func describeDesktopEntry(catalog *xdg.Catalog, v *variant.Variant) string {
	entry := catalog.Lookup(v.DesktopID)
	if entry == nil {
		return v.DesktopID + " " + colorYellow + "(not found)" + colorReset
	}
	icon := entry.Icon
	if icon == "" {
		icon = "no icon"
	}
	return fmt.Sprintf("%s %s(%s, %s)%s", v.DesktopID, colorDim, entry.Path, icon, colorReset)
}

func disabledVariants(cfg *config.Config) []string {
	var ids []string
	for _, vc := range cfg.Variants {
		if vc.Disabled {
			ids = append(ids, vc.ID)
		}
	}
	return ids
}
