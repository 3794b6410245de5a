package kronmult

import (
	"fmt"

	"github.com/statmech/kronwave/connect"
	"github.com/statmech/kronwave/grid"
	"github.com/statmech/kronwave/utils"
)

// Global computes y = beta*y + alpha * sum_t ((x)_d A_{t,d}) x over an
// irregular sparse index set. Each A_{t,d} is stored as values aligned to
// the connect_1d pattern in n x n tiles: vals[t][d][off*n*n + a*n + b] is
// entry (a, b) of the tile for connection offset off. A nil vals[t][d]
// stands for the identity in that dimension.
//
// The evaluation runs the permuted directional sweeps: for every sweep
// pattern, dimensions are processed in pattern order, each as a set of
// dense 1D matvecs over the dimension-sort strips, alternating the two
// scratch buffers w1 and w2 (each of size num_cells * n^d). The result is
// algebraically exact on lower index sets; bitwise equality with the local
// engine is not promised.
func Global[P utils.Scalar](perms Permutes, set *grid.IndexSet, ds *grid.DimensionSort,
	conn *connect.Connect1D, n int, vals [][][]P,
	alpha P, x []P, beta P, y []P, w1, w2 []P) error {
	var (
		dims = set.NumDims
		size = set.NumCells() * utils.Ipow(n, dims)
	)
	if perms.NumDims != dims {
		return fmt.Errorf("sweep patterns built for %d dimensions, index set has %d", perms.NumDims, dims)
	}
	if size == 0 {
		return nil
	}
	if len(x) < size || len(y) < size || len(w1) < size || len(w2) < size {
		return fmt.Errorf("vector or workspace shorter than the %d entries of the index set", size)
	}
	if beta == 0 {
		for i := 0; i < size; i++ {
			y[i] = 0
		}
	} else if beta != 1 {
		for i := 0; i < size; i++ {
			y[i] *= beta
		}
	}
	for t := range vals {
		globalTerm(perms, set, ds, conn, n, vals[t], alpha, x, y, w1, w2)
	}
	return nil
}

// globalTerm is the single-term fast path: one term, all sweep patterns.
func globalTerm[P utils.Scalar](perms Permutes, set *grid.IndexSet, ds *grid.DimensionSort,
	conn *connect.Connect1D, n int, vals [][]P,
	alpha P, x []P, y []P, w1, w2 []P) {
	var (
		dims = set.NumDims
		size = set.NumCells() * utils.Ipow(n, dims)
	)
	for p := 0; p < perms.NumPatterns(); p++ {
		var (
			src  = x
			dst  = w1
			next = w2
			dead = false
		)
		for _, d := range perms.Order[p] {
			fill := perms.Fill[p][d]
			if vals[d] == nil {
				// identity dimension: its strict upper part is zero, its
				// lower part is the identity sweep
				if fill == FillUpper {
					dead = true
					break
				}
				continue
			}
			sweepDim(set, ds, conn, d, n, fill, vals[d], src, dst[:size])
			src = dst
			dst, next = next, dst
		}
		if dead {
			continue
		}
		if &src[0] == &x[0] {
			// every dimension was an identity: the pattern reduces to x
			// itself, once, on the all-lower pattern
			if allLower(perms.Fill[p]) {
				utils.Axpy(alpha, x[:size], y[:size])
			}
			continue
		}
		utils.Axpy(alpha, src[:size], y[:size])
	}
}

func allLower(fill []Fill) bool {
	for _, f := range fill[:len(fill)-1] {
		if f != FillLower {
			return false
		}
	}
	return true
}

// sweepDim applies the 1D operator of one dimension across every strip of
// the dimension sort, restricted to the requested fill. out is fully
// overwritten.
func sweepDim[P utils.Scalar](set *grid.IndexSet, ds *grid.DimensionSort,
	conn *connect.Connect1D, dim, n int, fill Fill, vals []P, in, out []P) {
	var (
		dims   = set.NumDims
		bs     = utils.Ipow(n, dims)
		stride = utils.Ipow(n, dims-1-dim)
		nn     = n * n
	)
	for i := range out {
		out[i] = 0
	}
	for strip := 0; strip < ds.NumStrips(dim); strip++ {
		var (
			b, e = ds.StripBegin(dim, strip), ds.StripEnd(dim, strip)
		)
		for jr := b; jr < e; jr++ {
			var (
				rowCell = ds.Coord(dim, jr)
				rowBase = ds.Map(dim, jr) * bs
			)
			for jc := b; jc < e; jc++ {
				var (
					colCell = ds.Coord(dim, jc)
				)
				if !fill.keeps(rowCell, colCell) {
					continue
				}
				off := conn.GetOffset(rowCell, colCell)
				if off < 0 {
					continue
				}
				var (
					tile    = vals[off*nn : (off+1)*nn]
					colBase = ds.Map(dim, jc) * bs
				)
				// dense 1D matvec on the dim axis of every tensor line
				for hi := 0; hi < bs/(n*stride); hi++ {
					base := hi * n * stride
					for lo := 0; lo < stride; lo++ {
						for a := 0; a < n; a++ {
							var acc P
							for bb := 0; bb < n; bb++ {
								acc += tile[a*n+bb] * in[colBase+base+lo+bb*stride]
							}
							out[rowBase+base+lo+a*stride] += acc
						}
					}
				}
			}
		}
	}
}
