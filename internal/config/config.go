// Package config holds the run configuration: defaults, validation and
// output directory resolution. Cobra flags populate a Config before Validate.
package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// ColorMode controls styled console output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Colour when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colour on.
	ColorNever  ColorMode = "never"  // Plain text.
)

const (
	DefaultQuality  = 85.0
	DefaultWorkers  = 2
	DefaultExt      = ".webp"
	outputDirSuffix = "-export"
	minQuality      = 0.0
	maxQuality      = 100.0
)

// Config is the immutable snapshot a run is started with.
type Config struct {
	// Paths.
	InputDir  string
	OutputDir string // Default: InputDir + "-export".

	// Encoding.
	Quality  float32 // Default: 85. Ignored when Lossless.
	Lossless bool
	Ext      string // Target extension. Fixed: ".webp".

	// Pool.
	Workers int // Default: 2.

	// Display and logging.
	AssumeYes bool
	Plain     bool
	Verbose   bool
	ColorMode ColorMode
	LogFile   string
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return Config{
		Quality:   DefaultQuality,
		Ext:       DefaultExt,
		Workers:   DefaultWorkers,
		ColorMode: ColorAuto,
	}
}

// NormalizeDirArg strips trailing separators. The filesystem root is returned unchanged.
func NormalizeDirArg(path string) string {
	if path == "" {
		return ""
	}
	trimmed := strings.TrimRight(path, `/\`)
	if trimmed == "" {
		return path[:1]
	}
	return trimmed
}

// ResolveOutputDir fills OutputDir from InputDir when it was not given.
func (c *Config) ResolveOutputDir() {
	c.InputDir = NormalizeDirArg(c.InputDir)
	if strings.TrimSpace(c.OutputDir) == "" {
		c.OutputDir = c.InputDir + outputDirSuffix
		return
	}
	c.OutputDir = NormalizeDirArg(c.OutputDir)
}

// Validate checks ranges and enum values. It resolves OutputDir first.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.InputDir) == "" {
		return errors.New("--path is required")
	}
	c.ResolveOutputDir()

	if math.IsNaN(float64(c.Quality)) || c.Quality < minQuality || c.Quality > maxQuality {
		return fmt.Errorf("invalid quality %g (use a value between 0 and 100)", c.Quality)
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid thread count %d (need at least 1)", c.Workers)
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", c.ColorMode)
	}

	if c.Ext == "" {
		c.Ext = DefaultExt
	}
	if !strings.HasPrefix(c.Ext, ".") {
		c.Ext = "." + c.Ext
	}

	inAbs, err := filepath.Abs(c.InputDir)
	if err != nil {
		return err
	}
	outAbs, err := filepath.Abs(c.OutputDir)
	if err != nil {
		return err
	}
	if filepath.Clean(inAbs) == filepath.Clean(outAbs) {
		return errors.New("output directory must differ from the input directory")
	}
	return nil
}

// OutputInsideInput reports whether the output tree lives below the input
// tree, in which case the scanner has to prune it.
func (c *Config) OutputInsideInput() bool {
	inAbs, err := filepath.Abs(c.InputDir)
	if err != nil {
		return false
	}
	outAbs, err := filepath.Abs(c.OutputDir)
	if err != nil {
		return false
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(filepath.Clean(outAbs)+sep, filepath.Clean(inAbs)+sep)
}
