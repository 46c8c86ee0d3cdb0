package scan

import (
	"os"
	"path/filepath"
	"strings"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
	".svg":  true,
	".ico":  true,
	".raw":  true,
	".heic": true,
	".heif": true,
	".avif": true,
}

// IsImageExt reports whether ext (with leading dot, any case) is an image extension.
func IsImageExt(ext string) bool {
	return imageExtensions[strings.ToLower(ext)]
}

// IsEligible reports whether path is a regular file with an image extension.
// Symlinks are followed; a link to a directory is not eligible.
func IsEligible(path string) bool {
	if !IsImageExt(filepath.Ext(path)) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
