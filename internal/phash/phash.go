// Package phash computes a 64-bit perceptual hash of an image and compares
// hashes by Hamming distance, used as the catalog fallback when a suspect
// image arrives without an explicit side-info reference.
package phash

import (
	"fmt"
	"image"
	"math/bits"
	"sort"

	"golang.org/x/image/draw"

	"github.com/ttechtcapstone/watermarkcore/internal/transform/dct"
)

// DefaultHammingThreshold is the maximum Hamming distance accepted as a
// catalog match.
const DefaultHammingThreshold = 12

// Hash is a 64-bit perceptual hash.
type Hash uint64

// String renders the hash as 16 lowercase hex digits.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Hamming returns the number of differing bits between h and other.
func (h Hash) Hamming(other Hash) int {
	return bits.OnesCount64(uint64(h) ^ uint64(other))
}

// Compute derives a 64-bit pHash from img: grayscale, downsample to 32x32,
// 2D DCT, top-left 8x8 block minus DC, threshold against the median of the
// remaining 63 coefficients.
func Compute(img image.Image) Hash {
	gray := toGray32(img)
	coeffs := dct.Forward2D(gray)

	const blockSize = 8
	low := make([]float64, 0, blockSize*blockSize-1)
	for y := 0; y < blockSize; y++ {
		for x := 0; x < blockSize; x++ {
			if y == 0 && x == 0 {
				continue // skip DC
			}
			low = append(low, coeffs[y][x])
		}
	}
	med := median(low)

	var h uint64
	bitsWritten := 0
	for y := 0; y < blockSize && bitsWritten < 64; y++ {
		for x := 0; x < blockSize && bitsWritten < 64; x++ {
			h <<= 1
			if coeffs[y][x] > med {
				h |= 1
			}
			bitsWritten++
		}
	}
	return Hash(h)
}

// toGray32 resamples img to 32x32 luma and returns it as a float64 matrix.
func toGray32(img image.Image) [][]float64 {
	const n = 32
	dst := image.NewGray(image.Rect(0, 0, n, n))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	g := make([][]float64, n)
	for y := 0; y < n; y++ {
		g[y] = make([]float64, n)
		for x := 0; x < n; x++ {
			g[y][x] = float64(dst.GrayAt(x, y).Y)
		}
	}
	return g
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}
