package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runger/wsprovider/internal/config"
	"github.com/runger/wsprovider/internal/index"
	"github.com/runger/wsprovider/internal/match"
	"github.com/runger/wsprovider/internal/picker"
	"github.com/runger/wsprovider/internal/storage"
)

var (
	searchJSON    bool
	searchVariant string
	searchLimit   int
)

var searchCmd = &cobra.Command{
	Use:     "search <term>...",
	Short:   "Search recent workspaces",
	GroupID: groupCore,
	Long: `Search recent workspaces the way GNOME Shell sees them.

Every term must occur in the workspace name or its path. Workspaces whose
name contains all terms come first; otherwise terms close to the end of the
path rank higher.

Examples:
  wsprovider search api                 # All variants
  wsprovider search --variant codium go # One variant
  wsprovider search --json work api     # Output as JSON`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVar(&searchVariant, "variant", "", "search only this variant")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results per variant (0 = search.max_results)")
	searchCmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")

	rootCmd.AddCommand(searchCmd)
}

type searchOutput struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Variant     string  `json:"variant"`
	Score       float64 `json:"score"`
	Locus       string  `json:"locus"`
}

type searchResponse struct {
	Terms   []string       `json:"terms"`
	Results []searchOutput `json:"results"`
	Total   int            `json:"total"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	applyColorMode()

	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	variants, err := selectVariants(cfg, paths, searchVariant)
	if err != nil {
		return err
	}
	idx, err := loadIndex(cmd.Context(), cfg, variants, newLogger(cfg))
	if err != nil {
		return err
	}

	limit := searchLimit
	if limit == 0 {
		limit = cfg.Search.MaxResults
	}
	terms := match.Terms(args)
	results := searchIndex(idx, terms, limit, paths)

	if searchJSON {
		return writeSearchJSON(terms, results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	width := terminalWidth()
	for _, r := range results {
		printResult(r.Name, r.Description, r.Variant, width)
	}
	return nil
}

// searchIndex ranks every variant of idx against terms, variants in index
// order.
func searchIndex(idx *index.Index, terms []string, limit int, paths *config.Paths) []searchOutput {
	var out []searchOutput
	for _, snap := range idx.All() {
		matches := match.Rank(snap.Records, terms)
		if limit > 0 && len(matches) > limit {
			matches = matches[:limit]
		}
		for _, m := range matches {
			out = append(out, searchOutput{
				ID:          m.Record.ID,
				Name:        m.Record.Name,
				Description: storage.Describe(m.Record.URI, paths.Home),
				Variant:     snap.Variant,
				Score:       m.Score,
				Locus:       m.Locus.String(),
			})
		}
	}
	return out
}

func printResult(name, description, variantID string, width int) {
	name = picker.Sanitize(name)
	description = picker.Sanitize(description)

	// "name  description  [variant]"
	avail := width - len(name) - len(variantID) - 6
	if avail < 10 {
		avail = 10
	}
	fmt.Printf("%s%s%s  %s%s%s  [%s]\n",
		colorBold, name, colorReset,
		colorDim, picker.MiddleTruncate(description, avail), colorReset,
		variantID,
	)
}

func writeSearchJSON(terms []string, results []searchOutput) error {
	if results == nil {
		results = []searchOutput{}
	}
	resp := searchResponse{
		Terms:   terms,
		Results: results,
		Total:   len(results),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}
