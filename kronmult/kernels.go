package kronmult

import (
	"github.com/statmech/kronwave/utils"
)

// kronBlock accumulates y += alpha * (A_0 (x) A_1 (x) ... (x) A_{dims-1}) x
// for one block of size n^dims. Each ops[k] aliases the top-left entry of an
// n x n operator tile stored row-major with the given lda. The block tensor
// is laid out with the last dimension varying fastest.
//
// The product is evaluated as dims successive contractions of the fastest
// axis, each rotating that axis to the slowest position, so stage s
// contracts ops[dims-1-s] and after dims stages the layout is back in
// canonical order. x is left untouched; w and w2 are scratch of size n^dims,
// used alternately. The final contraction is fused with the alpha-scaled
// accumulation into y.
func kronBlock[P utils.Scalar](dims, n, lda int, ops [][]P, alpha P, x, w, w2, y []P) {
	var (
		tensorSize = utils.Ipow(n, dims)
		rows       = tensorSize / n
		src        = x
		scratch    = [2][]P{w, w2}
	)
	for s := 0; s < dims; s++ {
		a := ops[dims-1-s]
		if s == dims-1 {
			for i := 0; i < n; i++ {
				arow := a[i*lda : i*lda+n]
				for r := 0; r < rows; r++ {
					var acc P
					for j := 0; j < n; j++ {
						acc += arow[j] * src[r*n+j]
					}
					y[i*rows+r] += alpha * acc
				}
			}
			return
		}
		dst := scratch[s%2]
		for i := 0; i < n; i++ {
			arow := a[i*lda : i*lda+n]
			for r := 0; r < rows; r++ {
				var acc P
				for j := 0; j < n; j++ {
					acc += arow[j] * src[r*n+j]
				}
				dst[i*rows+r] = acc
			}
		}
		src = dst
	}
}

// kronecker forms the dense Kronecker product of an n x n and an m x m
// matrix, both row-major. It is the quadratic-time reference the engine
// tests compare against.
func kronecker[P utils.Scalar](n int, a []P, m int, b []P) (r []P) {
	r = make([]P, n*m*n*m)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < m; k++ {
				for l := 0; l < m; l++ {
					r[(i*m+k)*n*m+j*m+l] = a[i*n+j] * b[k*m+l]
				}
			}
		}
	}
	return
}
