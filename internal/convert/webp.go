// Package convert turns a source image file into an encoded WebP file.
package convert

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/gen2brain/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"towebp/pkg/imgutil"
)

// Ext is the extension of files written by WebP.
const Ext = ".webp"

// ErrUnsupported is returned for sources the decoder cannot read, such as
// svg or heic files that pass the extension filter.
var ErrUnsupported = errors.New("unsupported image format")

// Options controls encoding.
type Options struct {
	// Quality is in [0,100]. Ignored when Lossless.
	Quality  float32
	Lossless bool
	// Method is the speed/size trade-off, 0 (fast) to 6 (slow). Zero uses 4.
	Method int
}

// WebP encodes images to WebP. The zero value is ready to use.
type WebP struct {
	Method int
}

// Convert encodes src and writes the result to dst atomically.
func (c WebP) Convert(src, dst string, quality float32, lossless bool) error {
	data, err := c.Encode(src, Options{Quality: quality, Lossless: lossless, Method: c.Method})
	if err != nil {
		return err
	}
	return writeFileAtomic(dst, data)
}

// Encode decodes src, applies its EXIF orientation and returns WebP bytes.
func (c WebP) Encode(src string, opts Options) ([]byte, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src, err)
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, opts); err != nil {
		return nil, fmt.Errorf("encode %s: %w", src, err)
	}
	return buf.Bytes(), nil
}

func decode(f io.ReadSeeker) (image.Image, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	kind, err := imgutil.SniffReader(f)
	if err != nil {
		return nil, err
	}
	if kind == imgutil.KindUnknown {
		return nil, ErrUnsupported
	}

	orientation := 1
	if kind.HasExif() {
		// A broken EXIF block must not fail an otherwise decodable image.
		if o, err := readOrientation(f); err == nil {
			orientation = o
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	var img image.Image
	switch kind {
	case imgutil.KindJPEG:
		img, err = jpeg.Decode(f)
	case imgutil.KindPNG:
		img, err = png.Decode(f)
	case imgutil.KindGIF:
		img, err = gif.Decode(f)
	case imgutil.KindBMP:
		img, err = bmp.Decode(f)
	case imgutil.KindTIFF:
		img, err = tiff.Decode(f)
	case imgutil.KindWEBP:
		img, err = webp.Decode(f)
	default:
		return nil, ErrUnsupported
	}
	if err != nil {
		return nil, err
	}

	return applyOrientation(img, orientation), nil
}

func encode(w io.Writer, img image.Image, opts Options) error {
	method := opts.Method
	if method <= 0 || method > 6 {
		method = 4
	}
	return webp.Encode(w, img, webp.Options{
		Quality:  qualityInt(opts.Quality),
		Lossless: opts.Lossless,
		Method:   method,
	})
}

// qualityInt maps q onto the encoder's 1..100 scale. The encoder treats 0 as
// "use the default", so the lowest quality it is given is 1.
func qualityInt(q float32) int {
	if math.IsNaN(float64(q)) {
		return 1
	}
	v := int(math.Round(float64(q)))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}
