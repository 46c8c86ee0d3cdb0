package convert

import (
	"errors"
	"io"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// readOrientation returns the EXIF Orientation tag (1..8) of rs, or 1 when the
// image carries no EXIF block or no usable tag.
func readOrientation(rs io.ReadSeeker) (int, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return 1, err
	}

	// The EXIF block sits inside a JPEG APP1 segment or at the start of a
	// TIFF file; locate it before parsing.
	raw, err := exif.SearchAndExtractExifWithReader(rs)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return 1, nil
		}
		return 1, err
	}

	tags, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return 1, err
	}

	for _, tag := range tags {
		if tag.TagName != "Orientation" || strings.Contains(tag.IfdPath, "IFD1") {
			continue
		}
		if o := orientationValue(tag.Value); o >= 1 && o <= 8 {
			return o, nil
		}
	}
	return 1, nil
}

func orientationValue(v interface{}) int {
	switch val := v.(type) {
	case []uint16:
		if len(val) > 0 {
			return int(val[0])
		}
	case []uint32:
		if len(val) > 0 {
			return int(val[0])
		}
	case uint16:
		return int(val)
	}
	return 0
}
