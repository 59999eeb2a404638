// Package transform holds the pixel-level building blocks shared by the
// embedder and extractor: RGB <-> float64 channel matrices and the
// single-pass min-max normalization back to 8-bit.
package transform

import (
	"image"
	"image/color"
)

// Channels holds the three color planes of an RGB image as float64
// matrices of shape (H, W), promoted from 8-bit samples.
type Channels struct {
	R, G, B [][]float64
	W, H    int
}

// Split promotes an image's R, G, B planes to float64 matrices.
func Split(img image.Image) Channels {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	c := Channels{
		R: makeGrid(h, w),
		G: makeGrid(h, w),
		B: makeGrid(h, w),
		W: w,
		H: h,
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			c.R[y][x] = float64(r >> 8)
			c.G[y][x] = float64(g >> 8)
			c.B[y][x] = float64(bl >> 8)
		}
	}
	return c
}

// Merge combines three float64 channel matrices (already normalized to
// [0,255]) into an 8-bit RGBA image.
func Merge(r, g, bl [][]float64) *image.RGBA {
	h := len(r)
	w := len(r[0])
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: clamp8(r[y][x]),
				G: clamp8(g[y][x]),
				B: clamp8(bl[y][x]),
				A: 255,
			})
		}
	}
	return img
}

// NormalizeUint8 performs a single min-max rescale of src into [0,255].
// A constant (zero-range) channel maps to all zeros, matching cv2.normalize's
// behavior on a flat input.
func NormalizeUint8(src [][]float64) [][]float64 {
	min, max := src[0][0], src[0][0]
	for _, row := range src {
		for _, v := range row {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}

	out := makeGrid(len(src), len(src[0]))
	span := max - min
	if span == 0 {
		return out
	}
	for y, row := range src {
		for x, v := range row {
			out[y][x] = (v - min) / span * 255.0
		}
	}
	return out
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func makeGrid(h, w int) [][]float64 {
	g := make([][]float64, h)
	for i := range g {
		g[i] = make([]float64, w)
	}
	return g
}
