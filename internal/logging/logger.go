package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"towebp/internal/config"
)

// Options configures a Logger. Nil writers discard console output.
type Options struct {
	Out     io.Writer
	Err     io.Writer
	Color   config.ColorMode
	LogFile string
	Verbose bool
}

// Logger provides leveled, optionally coloured logging with an optional file
// sink. A nil *Logger is valid and discards everything.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	err     io.Writer
	file    *os.File
	verbose bool
	tags    map[string]string
}

var levelColors = map[string]lipgloss.Color{
	"INFO":    lipgloss.Color("#88C0D0"),
	"SUCCESS": lipgloss.Color("#A3BE8C"),
	"WARN":    lipgloss.Color("#EBCB8B"),
	"ERROR":   lipgloss.Color("#BF616A"),
	"DEBUG":   lipgloss.Color("#7A8291"),
}

// New builds a Logger and opens LogFile for appending when set. Call Close when done.
func New(opts Options) (*Logger, error) {
	l := &Logger{
		out:     opts.Out,
		err:     opts.Err,
		verbose: opts.Verbose,
		tags:    make(map[string]string, len(levelColors)),
	}
	if l.out == nil {
		l.out = io.Discard
	}
	if l.err == nil {
		l.err = l.out
	}

	renderer := lipgloss.NewRenderer(l.out)
	if colorEnabled(opts.Color, l.out) {
		if opts.Color == config.ColorAlways {
			renderer.SetColorProfile(termenv.ANSI256)
		}
	} else {
		renderer.SetColorProfile(termenv.Ascii)
	}
	for level, color := range levelColors {
		l.tags[level] = renderer.NewStyle().Bold(true).Foreground(color).Render("[" + level + "]")
	}

	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.file = f
	}
	return l, nil
}

func colorEnabled(mode config.ColorMode, w io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		f, ok := w.(*os.File)
		return ok && IsTerminal(f) && os.Getenv("NO_COLOR") == "" && strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
}

// IsTerminal reports whether f is a character device such as a TTY.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) line(level, text string) {
	if l == nil {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.out
	if level == "ERROR" {
		out = l.err
	}
	_, _ = io.WriteString(out, ts+" "+l.tags[level]+" "+text+"\n")
	if l.file != nil {
		_, _ = io.WriteString(l.file, ts+" ["+level+"] "+text+"\n")
	}
}

// Info logs at INFO level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.line("INFO", fmt.Sprintf(format, args...))
}

// Success logs at SUCCESS level.
func (l *Logger) Success(format string, args ...interface{}) {
	l.line("SUCCESS", fmt.Sprintf(format, args...))
}

// Warn logs at WARN level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.line("WARN", fmt.Sprintf(format, args...))
}

// Error logs at ERROR level to the error writer.
func (l *Logger) Error(format string, args ...interface{}) {
	l.line("ERROR", fmt.Sprintf(format, args...))
}

// Debug logs only when the logger was built with Verbose.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l == nil || !l.verbose {
		return
	}
	l.line("DEBUG", fmt.Sprintf(format, args...))
}
