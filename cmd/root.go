package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "towebp --path <dir> [flags]",
	Short: "towebp - batch convert an image tree to WebP",
	Long: "towebp walks a directory tree and converts every image to WebP in a mirrored output tree,\n" +
		"using a fixed pool of concurrent workers. Existing outputs are skipped, so re-runs are cheap.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runConvert,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
}
