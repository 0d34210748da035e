package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/wsprovider/internal/storage"
)

var (
	listVariant string
	listLimit   int
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List recent workspaces, most recent first",
	GroupID: groupCore,
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	listCmd.Flags().StringVar(&listVariant, "variant", "", "list only this variant")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "maximum number of workspaces per variant (0 = all)")
	listCmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	applyColorMode()

	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	variants, err := selectVariants(cfg, paths, listVariant)
	if err != nil {
		return err
	}
	idx, err := loadIndex(cmd.Context(), cfg, variants, newLogger(cfg))
	if err != nil {
		return err
	}

	width := terminalWidth()
	for i, snap := range idx.All() {
		if i > 0 {
			fmt.Println()
		}
		v := variants[i]
		fmt.Printf("%s%s%s %s(%s)%s\n", colorBold, v.Name, colorReset, colorDim, v.ID, colorReset)
		if snap.Len() == 0 {
			fmt.Printf("  %sno recent workspaces%s\n", colorDim, colorReset)
			continue
		}

		records := snap.Records
		if listLimit > 0 && len(records) > listLimit {
			records = records[:listLimit]
		}
		for _, r := range records {
			fmt.Print("  ")
			printResult(r.Name, storage.Describe(r.URI, paths.Home), string(r.Kind), width-2)
		}
	}
	return nil
}
