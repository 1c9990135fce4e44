/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package processor

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const jpegQuality = 90

// TrimTransparent crops away fully transparent borders and writes the result
// to dstPath as png. An image without transparent borders is written unchanged.
func TrimTransparent(srcPath, dstPath string) error {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return err
	}
	bounds := opaqueBounds(img)
	if bounds.Empty() {
		return fmt.Errorf("image is fully transparent")
	}
	cropped := imaging.Crop(img, bounds)
	return imaging.Save(cropped, dstPath)
}

// opaqueBounds returns the bounding box of all pixels with non-zero alpha.
func opaqueBounds(img image.Image) image.Rectangle {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X, b.Min.Y
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if minX > maxX || minY > maxY {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Enhance applies sharpening and saturation adjustment and writes the result
// to dstPath.
func Enhance(srcPath, dstPath string, sharpening, saturation float64) error {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return err
	}
	if sharpening > 0 {
		img = imaging.Sharpen(img, sharpening)
	}
	// imaging expects a percentage shift, the recipe carries a multiplier
	if saturation > 0 && saturation != 1.0 {
		img = imaging.AdjustSaturation(img, (saturation-1.0)*100)
	}
	return saveImage(img, dstPath)
}

// Convert re-encodes the image at srcPath into the format implied by the
// dstPath extension.
func Convert(srcPath, dstPath string) error {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return err
	}
	return saveImage(img, dstPath)
}

// NormalizeFormat maps a user-facing format name to a file extension.
func NormalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "jpeg", "jpg":
		return "jpg"
	case "webp":
		return "webp"
	default:
		return "png"
	}
}

// saveImage encodes img at path, choosing the codec by extension. The webp
// codec is not covered by imaging and is handled separately.
func saveImage(img image.Image, path string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err = webp.Encode(f, img, &webp.Options{Quality: jpegQuality}); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case "jpg", "jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(jpegQuality))
	default:
		return imaging.Save(img, path)
	}
}
