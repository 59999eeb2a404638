// Package resize resamples images to a canonical size using a
// high-quality interpolation kernel, the same building block both the
// embedder (host -> canonical_size) and the extractor (suspect ->
// canonical_size) use before any wavelet work happens.
package resize

import (
	"image"

	"golang.org/x/image/draw"
)

// To resamples src to exactly w x h pixels using Catmull-Rom interpolation.
// The destination always starts at (0,0) regardless of src's bounds origin.
func To(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// Dims returns the pixel width and height of img.
func Dims(img image.Image) (w, h int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
