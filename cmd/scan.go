package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"towebp/internal/config"
	"towebp/internal/processor"
	"towebp/internal/scan"
	"towebp/internal/tui"
)

var scanOutputDir string

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "List the images a conversion would process, without converting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		cfg.InputDir = args[0]
		cfg.OutputDir = scanOutputDir
		cfg.ResolveOutputDir()

		items, err := processor.Discover(cfg.InputDir, processor.Options{OutputDir: cfg.OutputDir})
		if err != nil {
			return err
		}

		pending := writeScanListing(cmd.OutOrStdout(), items, cfg)
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", scanDimStyle.Render(
			fmt.Sprintf("%d images, %d to convert, %d already in %s", len(items), pending, len(items)-pending, cfg.OutputDir)))
		return nil
	},
}

// writeScanListing prints one line per item and returns how many still need converting.
func writeScanListing(w io.Writer, items []scan.WorkItem, cfg config.Config) int {
	pending := 0
	for _, item := range items {
		out := processor.ResolveOutput(cfg.OutputDir, item, cfg.Ext)
		state := scanPendingStyle.Render("convert")
		if _, err := os.Stat(out); err == nil {
			state = scanDimStyle.Render("exists ")
		} else {
			pending++
		}
		fmt.Fprintf(w, "%s %s %s %s\n",
			state,
			scanFileStyle.Render(item.RelPath),
			scanBulletStyle.Render("->"),
			scanValueStyle.Render(out),
		)
	}
	return pending
}

var (
	scanFileStyle    = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	scanPendingStyle = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	scanValueStyle   = lipgloss.NewStyle().Foreground(tui.ColorInk)
	scanDimStyle     = lipgloss.NewStyle().Foreground(tui.ColorDim)
	scanBulletStyle  = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	scanCmd.Flags().StringVarP(&scanOutputDir, "output", "o", "", "output directory to compare against (default <path>-export)")
	rootCmd.AddCommand(scanCmd)
}
