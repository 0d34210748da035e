package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/runger/wsprovider/internal/config"
	"github.com/runger/wsprovider/internal/index"
	"github.com/runger/wsprovider/internal/launch"
	"github.com/runger/wsprovider/internal/picker"
	"github.com/runger/wsprovider/internal/storage"
	"github.com/runger/wsprovider/internal/variant"
)

var (
	pickVariant string
	pickPrint   bool
)

var pickCmd = &cobra.Command{
	Use:     "pick [query]",
	Short:   "Pick a recent workspace in the terminal and open it",
	GroupID: groupCore,
	Long: `Pick a recent workspace in an interactive terminal list and open it in its
editor. Tab switches between editor variants.

Keys:
  type       filter
  ↑/↓        move
  PgUp/PgDn  previous or next page
  Tab        next variant
  Enter      open
  Esc        cancel

Examples:
  wsprovider pick
  wsprovider pick --variant codium api
  cd "$(wsprovider pick --print)"`,
	RunE: runPick,
}

var openCmd = &cobra.Command{
	Use:     "open <result-id>",
	Short:   "Open a workspace by result id (<variant>:<uri>)",
	GroupID: groupCore,
	Args:    cobra.ExactArgs(1),
	RunE:    runOpen,
}

func init() {
	pickCmd.Flags().StringVar(&pickVariant, "variant", "", "start on this variant's tab")
	pickCmd.Flags().BoolVar(&pickPrint, "print", false, "print the selected path or URI instead of opening it")

	rootCmd.AddCommand(pickCmd)
	rootCmd.AddCommand(openCmd)
}

func runPick(cmd *cobra.Command, args []string) error {
	if err := checkTerminal(); err != nil {
		return err
	}
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	variants, err := selectVariants(cfg, paths, "")
	if err != nil {
		return err
	}
	if pickVariant != "" {
		if _, ok := variant.Find(variants, pickVariant); !ok {
			return fmt.Errorf("%w: %s", index.ErrUnknownVariant, pickVariant)
		}
	}
	idx, err := loadIndex(cmd.Context(), cfg, variants, logger)
	if err != nil {
		return err
	}

	tabs := make([]picker.Tab, len(variants))
	for i, v := range variants {
		tabs[i] = picker.Tab{ID: v.ID, Label: v.Name}
	}
	model := picker.NewModel(tabs, &picker.IndexProvider{Index: idx, Home: paths.Home}).
		WithTab(pickVariant).
		WithQuery(strings.Join(args, " "))

	// The picker draws on stderr so that --print output can be captured.
	lipgloss.SetColorProfile(termenv.NewOutput(os.Stderr).ColorProfile())
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("picker failed: %w", err)
	}

	item, ok := final.(picker.Model).Result()
	if !ok {
		return nil
	}
	r, ok := idx.Lookup(item.ID)
	if !ok {
		return fmt.Errorf("workspace %s disappeared", item.ID)
	}

	if pickPrint {
		fmt.Println(printable(r))
		return nil
	}
	return launchRecord(cmd.Context(), cfg, variants, r, logger)
}

func runOpen(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	variantID, _, ok := strings.Cut(args[0], ":")
	if !ok {
		return fmt.Errorf("invalid result id %q, expected <variant>:<uri>", args[0])
	}
	variants, err := selectVariants(cfg, paths, variantID)
	if err != nil {
		return err
	}
	idx, err := loadIndex(cmd.Context(), cfg, variants, logger)
	if err != nil {
		return err
	}

	r, ok := idx.Lookup(args[0])
	if !ok {
		return fmt.Errorf("no recent workspace with id %s", args[0])
	}
	return launchRecord(cmd.Context(), cfg, variants, r, logger)
}

// launchRecord opens r in its variant and waits for the scope handoff, so
// the editor does not stay in the terminal's scope.
func launchRecord(ctx context.Context, cfg *config.Config, variants []*variant.Variant, r storage.Record, logger *slog.Logger) error {
	v, ok := variant.Find(variants, r.VariantID)
	if !ok {
		return fmt.Errorf("%w: %s", index.ErrUnknownVariant, r.VariantID)
	}

	var scopes launch.ScopeManager
	if !cfg.Launch.DisableScope {
		scopes = launch.SystemdScopes{}
	}
	l := launch.New(launch.Config{
		Scopes:       scopes,
		Logger:       logger,
		UnitPrefix:   cfg.Launch.UnitPrefix,
		ScopeTimeout: cfg.ScopeTimeout(),
	})

	if _, err := l.Launch(ctx, v, &r); err != nil {
		return err
	}
	l.Wait()
	return nil
}

// checkTerminal fails when there is no terminal to draw the picker on.
func checkTerminal() error {
	if os.Getenv("TERM") == "dumb" {
		return fmt.Errorf("TERM=dumb is not supported")
	}
	f, err := os.Open("/dev/tty")
	if err != nil {
		return fmt.Errorf("no TTY available: %w", err)
	}
	return f.Close()
}

// printable returns a local path for file URIs and the URI otherwise.
func printable(r storage.Record) string {
	if rest, ok := strings.CutPrefix(r.URI, "file://"); ok && strings.HasPrefix(rest, "/") {
		return storage.DecodedURI(rest)
	}
	return r.URI
}
