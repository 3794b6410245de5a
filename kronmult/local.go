package kronmult

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/statmech/kronwave/utils"
)

// LocalKronmult is the block-sparse local Kronecker engine: per nonzero
// (row, col) block of the sparse pattern it applies
// sum_t (A_{t,0} (x) ... (x) A_{t,d-1}) restricted to that block pair, with
// every operator tile resolved up front through the iA offset lists.
//
// Shapes: x spans numCols blocks of n^dims, y spans numRows blocks. The
// pattern is a CSR over block rows; iA holds, per nonzero block, per term,
// dims offsets into the flat coefficient array vA, each the start of a
// densely packed n x n tile.
type LocalKronmult[P utils.Scalar] struct {
	Dims, N  int
	NumTerms int
	NumRows  int
	NumCols  int

	pntr, indx []int
	iA         []int
	vA         []P

	workers int
}

func NewLocalKronmult[P utils.Scalar](dims, n, numRows, numCols, numTerms int,
	pntr, indx, iA []int, vA []P) (kmat *LocalKronmult[P], err error) {
	if dims < 1 || dims > 6 {
		return nil, fmt.Errorf("invalid number of dimensions: %d, supported range is 1..6", dims)
	}
	if n < 1 || n > 10 {
		return nil, fmt.Errorf("invalid degree: %d, supported range is 1..10", n)
	}
	if len(pntr) != numRows+1 {
		return nil, fmt.Errorf("row pointer length %d does not match %d rows", len(pntr), numRows)
	}
	if len(iA) != len(indx)*numTerms*dims {
		return nil, fmt.Errorf("operator index list length %d does not match %d blocks x %d terms x %d dims",
			len(iA), len(indx), numTerms, dims)
	}
	kmat = &LocalKronmult[P]{
		Dims: dims, N: n, NumTerms: numTerms,
		NumRows: numRows, NumCols: numCols,
		pntr: pntr, indx: indx, iA: iA, vA: vA,
		workers: runtime.NumCPU(),
	}
	return
}

func (kmat *LocalKronmult[P]) BlockSize() int { return utils.Ipow(kmat.N, kmat.Dims) }

func (kmat *LocalKronmult[P]) InputSize() int  { return kmat.NumCols * kmat.BlockSize() }
func (kmat *LocalKronmult[P]) OutputSize() int { return kmat.NumRows * kmat.BlockSize() }

// Apply computes y = beta*y + alpha*A*x. With beta == 0 the output is
// overwritten, so y may come in uninitialized. Row blocks are independent
// and are split evenly across worker goroutines.
func (kmat *LocalKronmult[P]) Apply(alpha P, x []P, beta P, y []P) error {
	var (
		bs = kmat.BlockSize()
	)
	if kmat.NumRows == 0 || kmat.NumCols == 0 {
		return nil
	}
	if len(x) < kmat.InputSize() || len(y) < kmat.OutputSize() {
		return fmt.Errorf("vector sizes %d, %d do not match operator shape %d x %d",
			len(x), len(y), kmat.OutputSize(), kmat.InputSize())
	}
	var (
		pm = utils.NewPartitionMap(kmat.workers, kmat.NumRows)
		wg sync.WaitGroup
	)
	for bn := 0; bn < pm.ParallelDegree; bn++ {
		wg.Add(1)
		go func(bn int) {
			defer wg.Done()
			var (
				rMin, rMax = pm.GetBucketRange(bn)
				w          = make([]P, bs)
				w2         = make([]P, bs)
				ops        = make([][]P, kmat.Dims)
			)
			for r := rMin; r < rMax; r++ {
				yb := y[r*bs : (r+1)*bs]
				if beta == 0 {
					for i := range yb {
						yb[i] = 0
					}
				} else if beta != 1 {
					for i := range yb {
						yb[i] *= beta
					}
				}
				for j := kmat.pntr[r]; j < kmat.pntr[r+1]; j++ {
					var (
						c  = kmat.indx[j]
						xb = x[c*bs : (c+1)*bs]
					)
					for t := 0; t < kmat.NumTerms; t++ {
						base := (j*kmat.NumTerms + t) * kmat.Dims
						for d := 0; d < kmat.Dims; d++ {
							ops[d] = kmat.vA[kmat.iA[base+d]:]
						}
						kronBlock(kmat.Dims, kmat.N, kmat.N, ops, alpha, xb, w, w2, yb)
					}
				}
			}
		}(bn)
	}
	wg.Wait()
	return nil
}
