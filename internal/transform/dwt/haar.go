// Package dwt implements a single-level 2D Haar Discrete Wavelet Transform
// over rectangular float64 matrices of arbitrary (including odd) dimensions.
package dwt

// forward1D applies the Haar forward transform to a row/column of length n.
// avg[i] = (src[2i] + src[2i+1]) / 2, diff[i] = (src[2i] - src[2i+1]) / 2.
// When n is odd the final sample has no pair; it is treated as paired with
// itself, so its average equals the sample and its difference is zero.
// Returns a slice of length (n+1)/2 averages followed by (n+1)/2 differences.
func forward1D(src []float64) []float64 {
	n := len(src)
	half := (n + 1) / 2
	out := make([]float64, 2*half)
	for i := 0; i < half; i++ {
		a := src[2*i]
		b := a
		if 2*i+1 < n {
			b = src[2*i+1]
		}
		out[i] = (a + b) / 2.0
		out[half+i] = (a - b) / 2.0
	}
	return out
}

// inverse1D reconstructs a row/column of length n from Haar coefficients.
// src is [avg0..avg(half-1), diff0..diff(half-1)] where half = (n+1)/2.
func inverse1D(src []float64, n int) []float64 {
	half := (n + 1) / 2
	out := make([]float64, n)
	for i := 0; i < half; i++ {
		avg := src[i]
		diff := src[half+i]
		out[2*i] = avg + diff
		if 2*i+1 < n {
			out[2*i+1] = avg - diff
		}
	}
	return out
}

// Forward2D applies a single-level 2D Haar DWT to src, a rectangular h x w
// matrix. Returns four subbands LL, LH, HL, HH each of size
// ceil(h/2) x ceil(w/2).
//
// Subband layout in the transform domain:
//
//	[ LL | LH ]
//	[ HL | HH ]
//
// The transform applies forward1D to each row, then to each column of the
// intermediate result.
func Forward2D(src [][]float64) (ll, lh, hl, hh [][]float64) {
	h := len(src)
	w := len(src[0])
	halfH := (h + 1) / 2
	halfW := (w + 1) / 2

	// Step 1: apply 1D forward transform to each row.
	rowTrans := make([][]float64, h)
	for y := 0; y < h; y++ {
		rowTrans[y] = forward1D(src[y])
	}

	// Step 2: apply 1D forward transform to each column of rowTrans.
	full := make([][]float64, 2*halfH)
	for y := range full {
		full[y] = make([]float64, 2*halfW)
	}
	for x := 0; x < 2*halfW; x++ {
		col := make([]float64, h)
		for y := 0; y < h; y++ {
			col[y] = rowTrans[y][x]
		}
		transCol := forward1D(col)
		for y := 0; y < 2*halfH; y++ {
			full[y][x] = transCol[y]
		}
	}

	ll = makeGrid(halfH, halfW)
	lh = makeGrid(halfH, halfW)
	hl = makeGrid(halfH, halfW)
	hh = makeGrid(halfH, halfW)
	for y := 0; y < halfH; y++ {
		for x := 0; x < halfW; x++ {
			ll[y][x] = full[y][x]
			lh[y][x] = full[y][halfW+x]
			hl[y][x] = full[halfH+y][x]
			hh[y][x] = full[halfH+y][halfW+x]
		}
	}
	return ll, lh, hl, hh
}

// Inverse2D reconstructs an origH x origW matrix from the four subbands
// produced by Forward2D. All subbands must share the same dimensions
// (ceil(origH/2) x ceil(origW/2)).
func Inverse2D(ll, lh, hl, hh [][]float64, origH, origW int) [][]float64 {
	halfH := len(ll)
	halfW := len(ll[0])

	full := make([][]float64, 2*halfH)
	for y := range full {
		full[y] = make([]float64, 2*halfW)
	}
	for y := 0; y < halfH; y++ {
		for x := 0; x < halfW; x++ {
			full[y][x] = ll[y][x]
			full[y][halfW+x] = lh[y][x]
			full[halfH+y][x] = hl[y][x]
			full[halfH+y][halfW+x] = hh[y][x]
		}
	}

	// Step 1: inverse 1D on each column, trimmed to origH.
	colInv := make([][]float64, origH)
	for y := 0; y < origH; y++ {
		colInv[y] = make([]float64, 2*halfW)
	}
	for x := 0; x < 2*halfW; x++ {
		col := make([]float64, 2*halfH)
		for y := 0; y < 2*halfH; y++ {
			col[y] = full[y][x]
		}
		inv := inverse1D(col, origH)
		for y := 0; y < origH; y++ {
			colInv[y][x] = inv[y]
		}
	}

	// Step 2: inverse 1D on each row, trimmed to origW.
	out := make([][]float64, origH)
	for y := 0; y < origH; y++ {
		out[y] = inverse1D(colInv[y], origW)
	}
	return out
}

// makeGrid allocates a 2D slice of float64 with the given dimensions.
func makeGrid(rows, cols int) [][]float64 {
	g := make([][]float64, rows)
	for i := range g {
		g[i] = make([]float64, cols)
	}
	return g
}
