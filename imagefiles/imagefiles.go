// Package imagefiles finds and decodes the image files a batch run consumes.
package imagefiles

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"
)

// SupportedExtensions lists the lowercased file extensions Discover accepts.
var SupportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// DecodeError reports a file that could not be read or decoded. The batch
// runner reports it and moves on to the next image.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Discover returns the supported image files directly inside dir, sorted by
// name. It does not recurse into subdirectories.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read images directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if SupportedExtensions[ext] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// Decode reads and decodes a single image file. JPEG files carrying an EXIF
// orientation tag are rotated upright before use. Any failure returns a
// *DecodeError so the caller can skip the file and continue.
func Decode(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	if format == "jpeg" {
		if orientation := Orientation(data); orientation != 1 {
			img = CorrectOrientation(img, orientation)
		}
	}

	return img, nil
}

// Orientation extracts the EXIF orientation from JPEG data.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1 // no EXIF data
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1 // orientation tag not present
	}

	value, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return value
}

// CorrectOrientation maps an EXIF-oriented image back to upright pixels.
// Cases follow the EXIF orientation table; 1 and unknown values return the
// image unchanged.
func CorrectOrientation(img image.Image, orientation int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var dst *image.RGBA
	var place func(x, y int) (int, int)

	switch orientation {
	case 2: // flip horizontal
		dst = image.NewRGBA(image.Rect(0, 0, width, height))
		place = func(x, y int) (int, int) { return width - 1 - x, y }
	case 3: // rotate 180
		dst = image.NewRGBA(image.Rect(0, 0, width, height))
		place = func(x, y int) (int, int) { return width - 1 - x, height - 1 - y }
	case 4: // flip vertical
		dst = image.NewRGBA(image.Rect(0, 0, width, height))
		place = func(x, y int) (int, int) { return x, height - 1 - y }
	case 5: // transpose
		dst = image.NewRGBA(image.Rect(0, 0, height, width))
		place = func(x, y int) (int, int) { return y, x }
	case 6: // rotate 90 clockwise
		dst = image.NewRGBA(image.Rect(0, 0, height, width))
		place = func(x, y int) (int, int) { return height - 1 - y, x }
	case 7: // transverse
		dst = image.NewRGBA(image.Rect(0, 0, height, width))
		place = func(x, y int) (int, int) { return height - 1 - y, width - 1 - x }
	case 8: // rotate 90 counter-clockwise
		dst = image.NewRGBA(image.Rect(0, 0, height, width))
		place = func(x, y int) (int, int) { return y, width - 1 - x }
	default: // orientation 1 or unknown
		return img
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := place(x, y)
			dst.Set(dx, dy, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}

	return dst
}
