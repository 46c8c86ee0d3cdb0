package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"towebp/internal/config"
	"towebp/internal/convert"
	"towebp/internal/logging"
	"towebp/internal/processor"
	"towebp/internal/tui"
)

var (
	convertCfg   = config.DefaultConfig()
	convertColor string
)

func runConvert(cmd *cobra.Command, args []string) error {
	cfg := convertCfg
	cfg.ColorMode = config.ColorMode(convertColor)
	if err := cfg.Validate(); err != nil {
		return err
	}

	stdout := cmd.OutOrStdout()
	useTUI := !cfg.Plain && logging.IsTerminal(os.Stdout)

	// The progress view owns the terminal, so console logging only happens in plain mode.
	var console, consoleErr io.Writer
	if !useTUI {
		console, consoleErr = stdout, cmd.ErrOrStderr()
	}
	log, err := logging.New(logging.Options{
		Out:     console,
		Err:     consoleErr,
		Color:   cfg.ColorMode,
		LogFile: cfg.LogFile,
		Verbose: cfg.Verbose,
	})
	if err != nil {
		return err
	}
	defer log.Close()

	opts := processor.Options{
		OutputDir: cfg.OutputDir,
		Ext:       cfg.Ext,
		Quality:   cfg.Quality,
		Lossless:  cfg.Lossless,
		Workers:   cfg.Workers,
		Log:       log,
	}

	if cfg.OutputInsideInput() {
		log.Warn("Output %s is inside %s and will be left out of the scan", cfg.OutputDir, cfg.InputDir)
	}

	items, err := processor.Discover(cfg.InputDir, opts)
	if err != nil {
		log.Error("Scan failed: %v", err)
		return err
	}

	fmt.Fprintln(stdout, renderSettings(cfg, len(items)))
	if !cfg.AssumeYes {
		ok, err := confirm(cmd.InOrStdin(), stdout)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var updates chan processor.ProgressUpdate
	uiDone := make(chan struct{})
	if useTUI {
		updates = make(chan processor.ProgressUpdate, 64)
		model := tui.NewModel(updates).WithInterrupt(stop)
		program := tea.NewProgram(model)
		go func() {
			defer close(uiDone)
			runProgress(program, updates, log)
		}()
	} else {
		close(uiDone)
	}

	summary := processor.Run(ctx, items, opts, convert.WebP{}, updates)

	if updates != nil {
		close(updates)
	}
	<-uiDone

	log.Info("Run %s finished in %s: processed %d, skipped %d, failed %d",
		summary.RunID, summary.Elapsed, summary.Processed, summary.Skipped, summary.Failed)

	fmt.Fprintln(stdout, tui.RenderSummary(tui.SummaryRows(summary)))
	if failures := tui.RenderFailures(summary.Failures); failures != "" {
		fmt.Fprintln(stdout, failures)
	}
	outPath := cfg.OutputDir
	if abs, absErr := filepath.Abs(cfg.OutputDir); absErr == nil {
		outPath = abs
	}
	fmt.Fprintf(stdout, "WebP files written to: %s\n", outPath)

	return nil
}

type progressProgram interface {
	Run() (tea.Model, error)
}

// runProgress runs the progress view, then drains updates until the run
// closes them. A view that exits early must not leave the collector blocked.
func runProgress(p progressProgram, updates <-chan processor.ProgressUpdate, log *logging.Logger) {
	if _, err := p.Run(); err != nil {
		log.Error("Progress view stopped: %v", err)
	}
	for range updates {
	}
}

func renderSettings(cfg config.Config, count int) string {
	rows := []tui.SummaryRow{
		{Label: "Input", Value: cfg.InputDir},
		{Label: "Images", Value: fmt.Sprintf("%d", count)},
		{Label: "Output", Value: cfg.OutputDir},
		{Label: "Lossless", Value: fmt.Sprintf("%t", cfg.Lossless)},
	}
	if !cfg.Lossless {
		rows = append(rows, tui.SummaryRow{Label: "Quality", Value: fmt.Sprintf("%g", cfg.Quality)})
	}
	rows = append(rows, tui.SummaryRow{Label: "Threads", Value: fmt.Sprintf("%d", cfg.Workers)})
	return settingsTitleStyle.Render("Settings") + "\n" + tui.RenderSummary(rows)
}

// confirm waits for Enter. An answer starting with n or q declines; EOF accepts.
func confirm(in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprint(out, "Press Enter to continue (n to abort)... ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return !strings.HasPrefix(answer, "n") && !strings.HasPrefix(answer, "q"), nil
}

var settingsTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&convertCfg.InputDir, "path", "p", "", "source directory to scan (required)")
	flags.StringVarP(&convertCfg.OutputDir, "output", "o", "", "output directory (default <path>-export)")
	flags.Float32VarP(&convertCfg.Quality, "quality", "q", config.DefaultQuality, "WebP quality 0-100, ignored with --lossless")
	flags.IntVarP(&convertCfg.Workers, "threads", "t", config.DefaultWorkers, "number of concurrent workers")
	flags.BoolVarP(&convertCfg.Lossless, "lossless", "l", false, "encode lossless WebP")
	flags.BoolVarP(&convertCfg.AssumeYes, "yes", "y", false, "start without the confirmation prompt")
	flags.BoolVar(&convertCfg.Plain, "plain", false, "log every item instead of showing the progress view")
	flags.StringVar(&convertCfg.LogFile, "log-file", "", "append log lines to this file")
	flags.StringVar(&convertColor, "color", string(config.ColorAuto), "colour output: auto, always or never")
	flags.BoolVarP(&convertCfg.Verbose, "verbose", "v", false, "log per-item sizes and timings")
	_ = rootCmd.MarkFlagRequired("path")
}
