package processor

import (
	"fmt"
	"time"

	"towebp/internal/logging"
)

// Converter encodes the image at src into dst. Quality is in [0,100] and is
// ignored when lossless is set.
type Converter interface {
	Convert(src, dst string, quality float32, lossless bool) error
}

// ConverterFunc adapts a plain function to Converter.
type ConverterFunc func(src, dst string, quality float32, lossless bool) error

func (f ConverterFunc) Convert(src, dst string, quality float32, lossless bool) error {
	return f(src, dst, quality, lossless)
}

// Options is the read-only configuration shared by every worker.
// Ext replaces the source extension in the output path; empty keeps it.
type Options struct {
	OutputDir string
	Ext       string
	Quality   float32
	Lossless  bool
	Workers   int
	Log       *logging.Logger
}

type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeConverted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeConverted:
		return "converted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stage names the step of the per-item protocol that failed.
type Stage string

const (
	StageMkdir   Stage = "mkdir"
	StageConvert Stage = "convert"
)

// ItemError is a per-item failure. It never aborts the run.
type ItemError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

type Result struct {
	RelPath  string
	Display  string
	Output   string
	Outcome  Outcome
	Err      error
	BytesIn  int64
	BytesOut int64
	Elapsed  time.Duration
}

// ItemFailure records one failed item for the final report.
type ItemFailure struct {
	RelPath string
	Output  string
	Err     error
}

// Summary is the snapshot of a run, read after every worker has finished.
type Summary struct {
	RunID     string
	Total     int
	Processed int
	Skipped   int
	Failed    int
	BytesIn   int64
	BytesOut  int64
	Failures  []ItemFailure
	Canceled  bool
	Elapsed   time.Duration
}

// Converted is the number of successful conversion attempts.
func (s Summary) Converted() int {
	return s.Processed - s.Failed
}

// SpaceSaved is the byte difference between converted sources and their
// outputs. Negative means the outputs grew.
func (s Summary) SpaceSaved() int64 {
	return s.BytesIn - s.BytesOut
}

// Complete reports whether every discovered item reached a terminal state.
func (s Summary) Complete() bool {
	return s.Processed+s.Skipped == s.Total
}

// Event describes the terminal outcome of one item.
type Event struct {
	Outcome Outcome
	Path    string
	Err     error
}

type ProgressUpdate struct {
	TotalDelta      int
	ProcessedDelta  int
	SkippedDelta    int
	FailedDelta     int
	BytesSavedDelta int64
	Event           *Event
}
