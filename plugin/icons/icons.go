// Package icons generates the app icon set referenced by the web manifest and notifications.
package icons

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Sizes are the square icon sizes the app ships.
var Sizes = []int{72, 96, 128, 144, 152, 192, 384, 512}

// Brand is the fill used when no source image is given.
var Brand = color.NRGBA{R: 0x5b, G: 0x8d, B: 0xb8, A: 0xff}

// FileName returns the icon file name for size, e.g. icon-192x192.png.
func FileName(size int) string {
	return fmt.Sprintf("icon-%dx%d.png", size, size)
}

// Generate writes one PNG per size into outDir. The source is cropped to a
// centered square before resizing. An empty source yields solid brand icons.
func Generate(source, outDir string, sizes []int) ([]string, error) {
	var src image.Image
	if source == "" {
		src = imaging.New(Sizes[len(Sizes)-1], Sizes[len(Sizes)-1], Brand)
	} else {
		img, err := imaging.Open(source)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open source image %s", source)
		}
		src = img
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create icon directory")
	}

	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	square := imaging.CropCenter(src, side, side)

	paths := make([]string, 0, len(sizes))
	for _, size := range sizes {
		if size <= 0 {
			return nil, errors.Errorf("invalid icon size %d", size)
		}
		resized := imaging.Resize(square, size, size, imaging.Lanczos)
		path := filepath.Join(outDir, FileName(size))
		if err := imaging.Save(resized, path); err != nil {
			return nil, errors.Wrapf(err, "failed to save %dpx icon", size)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
