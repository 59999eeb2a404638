// Package svd provides thin singular value decomposition of rectangular
// float64 matrices, used to embed and recover a watermark's singular
// spectrum inside a DWT LL sub-band.
package svd

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Result holds a thin SVD factorization A = U * diag(S) * V^T.
// S is non-negative and in descending order, per gonum's convention.
// U has shape (rows, min(rows,cols)); V has shape (cols, min(rows,cols)).
type Result struct {
	S    []float64
	U    *mat.Dense
	V    *mat.Dense
	rows int
	cols int
}

// Factorize computes the thin SVD of a rows x cols matrix stored row-major
// in data (len(data) == rows*cols).
func Factorize(data []float64, rows, cols int) (*Result, error) {
	a := mat.NewDense(rows, cols, append([]float64(nil), data...))

	var f mat.SVD
	if ok := f.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("svd: factorization failed for %dx%d matrix", rows, cols)
	}

	s := f.Values(nil)
	var u, v mat.Dense
	f.UTo(&u)
	f.VTo(&v)

	return &Result{S: s, U: &u, V: &v, rows: rows, cols: cols}, nil
}

// Reconstruct computes U * diag(s) * V^T and returns it as a row-major
// rows x cols slice. s may be shorter than the original singular value
// count (the caller has truncated a length guard); only the leading
// len(s) columns of U / rows of V are used.
func (r *Result) Reconstruct(s []float64) []float64 {
	n := len(s)
	uSub := r.U.Slice(0, r.rows, 0, n).(*mat.Dense)
	vSub := r.V.Slice(0, r.cols, 0, n).(*mat.Dense)

	diag := mat.NewDiagDense(n, s)

	var tmp, result mat.Dense
	tmp.Mul(uSub, diag)
	result.Mul(&tmp, vSub.T())

	return append([]float64(nil), result.RawMatrix().Data...)
}

// Truncate returns the leading n singular values; an n larger than the
// available count is clamped to that count. Callers apply the spec's
// length guard before calling Reconstruct.
func (r *Result) Truncate(n int) []float64 {
	if n > len(r.S) {
		n = len(r.S)
	}
	return append([]float64(nil), r.S[:n]...)
}

// Len returns min(rows, cols), the number of singular values produced.
func (r *Result) Len() int { return len(r.S) }
