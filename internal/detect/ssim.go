package detect

// ssim computes single-scale structural similarity over two equal-shape
// grayscale images (flattened row-major, 8-bit range), using a sliding
// uniform window matching skimage's default win_size=7 and Wang et al.'s
// standard stabilizing constants for an 8-bit dynamic range.
func ssim(a, b []float64, w, h int) float64 {
	const (
		winSize = 7
		c1      = (0.01 * 255) * (0.01 * 255)
		c2      = (0.03 * 255) * (0.03 * 255)
	)
	if w < winSize || h < winSize {
		return globalSSIM(a, b, c1, c2)
	}

	half := winSize / 2
	var total float64
	count := 0
	for y := half; y < h-half; y++ {
		for x := half; x < w-half; x++ {
			s := windowSSIM(a, b, w, x, y, half, c1, c2)
			total += s
			count++
		}
	}
	if count == 0 {
		return globalSSIM(a, b, c1, c2)
	}
	return total / float64(count)
}

func windowSSIM(a, b []float64, w, cx, cy, half int, c1, c2 float64) float64 {
	var sumA, sumB float64
	n := 0
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			idx := (cy+dy)*w + (cx + dx)
			sumA += a[idx]
			sumB += b[idx]
			n++
		}
	}
	meanA := sumA / float64(n)
	meanB := sumB / float64(n)

	var varA, varB, covAB float64
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			idx := (cy+dy)*w + (cx + dx)
			da := a[idx] - meanA
			db := b[idx] - meanB
			varA += da * da
			varB += db * db
			covAB += da * db
		}
	}
	varA /= float64(n - 1)
	varB /= float64(n - 1)
	covAB /= float64(n - 1)

	numerator := (2*meanA*meanB + c1) * (2*covAB + c2)
	denominator := (meanA*meanA + meanB*meanB + c1) * (varA + varB + c2)
	if denominator == 0 {
		return 1
	}
	return numerator / denominator
}

// globalSSIM falls back to a single whole-image window for images smaller
// than the sliding window, rather than failing.
func globalSSIM(a, b []float64, c1, c2 float64) float64 {
	meanA := mean(a)
	meanB := mean(b)

	var varA, varB, covAB float64
	n := len(a)
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		varA += da * da
		varB += db * db
		covAB += da * db
	}
	if n > 1 {
		varA /= float64(n - 1)
		varB /= float64(n - 1)
		covAB /= float64(n - 1)
	}

	numerator := (2*meanA*meanB + c1) * (2*covAB + c2)
	denominator := (meanA*meanA + meanB*meanB + c1) * (varA + varB + c2)
	if denominator == 0 {
		return 1
	}
	return numerator / denominator
}
