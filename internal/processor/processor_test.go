package processor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"towebp/internal/convert"
	"towebp/internal/scan"
)

// copyConverter writes the source bytes to dst and counts invocations.
type copyConverter struct {
	calls atomic.Int64
	fail  func(name string) bool
	delay time.Duration
}

func (c *copyConverter) Convert(src, dst string, quality float32, lossless bool) error {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.fail != nil && c.fail(filepath.Base(src)) {
		return errors.New("boom")
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func TestEndToEndSingleItem(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "export")
	writeFile(t, filepath.Join(root, "a", "b.jpg"))
	writeFile(t, filepath.Join(root, "c.txt"))

	items, err := scan.Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(items) != 1 || items[0].RelPath != filepath.Join("a", "b.jpg") {
		t.Fatalf("unexpected scan result: %#v", items)
	}

	conv := &copyConverter{}
	summary := Run(context.Background(), items, Options{OutputDir: out, Ext: ".webp", Quality: 85, Workers: 2}, conv, nil)

	if summary.Processed != 1 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(out, "a", "b.webp")); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if summary.RunID == "" {
		t.Fatalf("expected a run id")
	}
}

func TestSecondRunSkipsEverything(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "export")
	buildTree(t, root, 12)

	opts := Options{OutputDir: out, Ext: ".webp", Workers: 4}
	first, err := Execute(context.Background(), root, opts, &copyConverter{}, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Processed != 12 || first.Skipped != 0 {
		t.Fatalf("unexpected first summary: %+v", first)
	}

	conv := &copyConverter{}
	second, err := Execute(context.Background(), root, opts, conv, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Processed != 0 || second.Skipped != 12 {
		t.Fatalf("unexpected second summary: %+v", second)
	}
	if conv.calls.Load() != 0 {
		t.Fatalf("converter invoked %d times on a populated output tree", conv.calls.Load())
	}
}

func TestCountersIndependentOfPoolSize(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root, 40)
	items, err := scan.Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	for _, workers := range []int{1, 2, 16} {
		out := t.TempDir()
		// Pre-populate a few outputs so both counters move.
		for _, item := range items[:5] {
			dst := ResolveOutput(out, item, ".webp")
			writeFile(t, dst)
		}
		// img3, img13, img23 and img33 fail; none of them is pre-populated.
		conv := &copyConverter{fail: func(name string) bool { return strings.HasSuffix(name, "3.jpg") }}

		summary := Run(context.Background(), items, Options{OutputDir: out, Ext: ".webp", Workers: workers}, conv, nil)
		if summary.Processed+summary.Skipped != len(items) {
			t.Fatalf("workers=%d: processed %d + skipped %d != %d", workers, summary.Processed, summary.Skipped, len(items))
		}
		if summary.Skipped != 5 || summary.Processed != 35 {
			t.Fatalf("workers=%d: unexpected summary %+v", workers, summary)
		}
		if summary.Failed != 4 || len(summary.Failures) != 4 {
			t.Fatalf("workers=%d: expected 4 failures, got %+v", workers, summary)
		}
		if int(conv.calls.Load()) != 35 {
			t.Fatalf("workers=%d: converter called %d times", workers, conv.calls.Load())
		}
	}
}

func TestSharedOutputConvertedOnce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "x.jpg"))
	writeFile(t, filepath.Join(root, "x.png"))
	writeFile(t, filepath.Join(root, "sub", "y.gif"))
	writeFile(t, filepath.Join(root, "sub", "y.jpg"))
	items, err := scan.Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	for _, workers := range []int{1, 2, 16} {
		out := t.TempDir()
		conv := &copyConverter{delay: 50 * time.Millisecond}

		summary := Run(context.Background(), items, Options{OutputDir: out, Ext: ".webp", Workers: workers}, conv, nil)
		if summary.Processed != 2 || summary.Skipped != 2 || summary.Failed != 0 {
			t.Fatalf("workers=%d: unexpected summary %+v", workers, summary)
		}
		if conv.calls.Load() != 2 {
			t.Fatalf("workers=%d: converter called %d times, want 2", workers, conv.calls.Load())
		}
		for _, rel := range []string{"x.webp", filepath.Join("sub", "y.webp")} {
			if _, err := os.Stat(filepath.Join(out, rel)); err != nil {
				t.Fatalf("workers=%d: expected %s: %v", workers, rel, err)
			}
		}
	}
}

func TestConversionFailureIsIsolated(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(root, "good.png"))
	writeFile(t, filepath.Join(root, "bad.png"))
	writeFile(t, filepath.Join(root, "panics.png"))

	conv := ConverterFunc(func(src, dst string, quality float32, lossless bool) error {
		switch filepath.Base(src) {
		case "bad.png":
			return errors.New("decode failed")
		case "panics.png":
			panic("codec crashed")
		}
		return os.WriteFile(dst, []byte("ok"), 0o644)
	})

	summary, err := Execute(context.Background(), root, Options{OutputDir: out, Ext: ".webp", Workers: 3}, conv, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.Processed != 3 || summary.Failed != 2 || summary.Converted() != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, f := range summary.Failures {
		var itemErr *ItemError
		if !errors.As(f.Err, &itemErr) || itemErr.Stage != StageConvert {
			t.Fatalf("expected convert-stage ItemError, got %v", f.Err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "good.webp")); err != nil {
		t.Fatalf("good item not converted: %v", err)
	}
}

func TestMkdirFailureCountsAsProcessed(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "b.jpg"))
	writeFile(t, filepath.Join(root, "c.jpg"))
	// A regular file where the "a" directory must go.
	writeFile(t, filepath.Join(out, "a"))

	conv := &copyConverter{}
	summary, err := Execute(context.Background(), root, Options{OutputDir: out, Ext: ".webp", Workers: 2}, conv, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.Processed != 2 || summary.Skipped != 0 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !summary.Complete() {
		t.Fatalf("counter invariant broken: %+v", summary)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("expected one failure, got %+v", summary.Failures)
	}
	var itemErr *ItemError
	if !errors.As(summary.Failures[0].Err, &itemErr) || itemErr.Stage != StageMkdir {
		t.Fatalf("expected mkdir-stage ItemError, got %v", summary.Failures[0].Err)
	}
	if conv.calls.Load() != 1 {
		t.Fatalf("converter called %d times, want 1", conv.calls.Load())
	}
}

func TestExecuteMissingRoot(t *testing.T) {
	conv := &copyConverter{}
	summary, err := Execute(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{OutputDir: t.TempDir(), Workers: 2}, conv, nil)
	if !errors.Is(err, scan.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if summary.Processed != 0 || summary.Skipped != 0 || summary.Total != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
	if conv.calls.Load() != 0 {
		t.Fatalf("converter must not run after a fatal scan error")
	}
}

func TestExecuteExcludesOutputInsideRoot(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "export")
	writeFile(t, filepath.Join(root, "a.png"))

	opts := Options{OutputDir: out, Ext: ".webp", Workers: 1}
	if _, err := Execute(context.Background(), root, opts, &copyConverter{}, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := Execute(context.Background(), root, opts, &copyConverter{}, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Total != 1 || second.Skipped != 1 {
		t.Fatalf("output tree leaked into the scan: %+v", second)
	}
}

func TestRunCanceled(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root, 20)
	items, err := scan.Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	conv := ConverterFunc(func(src, dst string, quality float32, lossless bool) error {
		once.Do(cancel)
		return os.WriteFile(dst, nil, 0o644)
	})

	summary := Run(ctx, items, Options{OutputDir: t.TempDir(), Ext: ".webp", Workers: 1}, conv, nil)
	if !summary.Canceled {
		t.Fatalf("expected canceled summary, got %+v", summary)
	}
	if summary.Processed+summary.Skipped >= summary.Total {
		t.Fatalf("expected an incomplete run, got %+v", summary)
	}
	if summary.Processed < 1 {
		t.Fatalf("the in-flight item must still be counted: %+v", summary)
	}
}

func TestRunProgressUpdates(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	buildTree(t, root, 6)
	items, err := scan.Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	writeFile(t, ResolveOutput(out, items[0], ".webp"))

	updates := make(chan ProgressUpdate, 64)
	summary := Run(context.Background(), items, Options{OutputDir: out, Ext: ".webp", Workers: 3}, &copyConverter{}, updates)
	close(updates)

	var total, processed, skipped, events int
	for u := range updates {
		total += u.TotalDelta
		processed += u.ProcessedDelta
		skipped += u.SkippedDelta
		if u.Event != nil {
			events++
		}
	}
	if total != 6 || processed != summary.Processed || skipped != summary.Skipped || events != 6 {
		t.Fatalf("updates total=%d processed=%d skipped=%d events=%d, summary %+v", total, processed, skipped, events, summary)
	}
}

func TestRunZeroWorkersFallsBackToOne(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root, 3)
	items, err := scan.Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	summary := Run(context.Background(), items, Options{OutputDir: t.TempDir(), Ext: ".webp"}, &copyConverter{}, nil)
	if summary.Processed != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunWithWebPConverter(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "export")
	writePNG(t, filepath.Join(root, "album", "red.png"))
	writePNG(t, filepath.Join(root, "blue.PNG"))

	opts := Options{OutputDir: out, Ext: convert.Ext, Quality: 85, Workers: 2}
	summary, err := Execute(context.Background(), root, opts, convert.WebP{}, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.Processed != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, rel := range []string{filepath.Join("album", "red.webp"), "blue.webp"} {
		data, err := os.ReadFile(filepath.Join(out, rel))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if len(data) < 12 || string(data[8:12]) != "WEBP" {
			t.Fatalf("%s is not a WebP file", rel)
		}
	}
}

func TestResolveOutput(t *testing.T) {
	item := scan.WorkItem{RelPath: filepath.Join("a", "b.JPG")}
	if got, want := ResolveOutput("out", item, ".webp"), filepath.Join("out", "a", "b.webp"); got != want {
		t.Fatalf("ResolveOutput = %q, want %q", got, want)
	}
	if got, want := ResolveOutput("out", item, ""), filepath.Join("out", "a", "b.JPG"); got != want {
		t.Fatalf("ResolveOutput without ext = %q, want %q", got, want)
	}
}

func TestEnsureParentConcurrent(t *testing.T) {
	out := t.TempDir()
	target := filepath.Join(out, "x", "y", "z", "file.webp")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- EnsureParent(target)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("EnsureParent: %v", err)
		}
	}
	if info, err := os.Stat(filepath.Dir(target)); err != nil || !info.IsDir() {
		t.Fatalf("parent directory missing: %v", err)
	}
}

func buildTree(t *testing.T, root string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		dir := filepath.Join(root, "d"+string(rune('a'+i%4)))
		writeFile(t, filepath.Join(dir, "img"+strconv.Itoa(i)+".jpg"))
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("image bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 0xff, B: uint8(x * 60), A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
