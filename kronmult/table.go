package kronmult

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/statmech/kronwave/grid"
	"github.com/statmech/kronwave/utils"
)

// BlockRange is a half-open rectangle of (row, col) block indexes into the
// element table.
type BlockRange struct {
	RowStart, RowEnd int
	ColStart, ColEnd int
}

func (r BlockRange) NumRows() int { return r.RowEnd - r.RowStart }
func (r BlockRange) NumCols() int { return r.ColEnd - r.ColStart }
func (r BlockRange) Size() int    { return r.NumRows() * r.NumCols() }

// TableKronmult is the element-table driven form of the local engine: the
// sparse index set doubles as the element table, every (row, col) block in
// the given range is active, and the operator tiles are cut out of dense
// per-(term, dim) coefficient matrices of leading dimension lda at apply
// time. The tile pointer lists are materialized once per grid adaptation
// and borrowed by every subsequent dispatch.
type TableKronmult[P utils.Scalar] struct {
	Dims, N  int
	NumTerms int
	Range    BlockRange

	set    *grid.IndexSet
	coeffs [][]P // [term*dims + dim], dense lda x lda, row-major
	lda    int

	// pointer lists built from the element table: per block, per term,
	// dims tile views into coeffs
	aops [][]P

	workers int
}

func NewTableKronmult[P utils.Scalar](set *grid.IndexSet, n, numTerms int,
	coeffs [][]P, lda int, rng BlockRange) (kmat *TableKronmult[P], err error) {
	var (
		dims = set.NumDims
	)
	if n < 1 || n > 10 {
		return nil, fmt.Errorf("invalid degree: %d, supported range is 1..10", n)
	}
	if len(coeffs) != numTerms*dims {
		return nil, fmt.Errorf("expected %d coefficient matrices, got %d", numTerms*dims, len(coeffs))
	}
	if rng.RowEnd > set.NumCells() || rng.ColEnd > set.NumCells() {
		return nil, fmt.Errorf("block range %v exceeds the %d cells of the element table", rng, set.NumCells())
	}
	kmat = &TableKronmult[P]{
		Dims: dims, N: n, NumTerms: numTerms, Range: rng,
		set: set, coeffs: coeffs, lda: lda,
		workers: runtime.NumCPU(),
	}
	kmat.prepareLists()
	return
}

// prepareLists is the list-building step: it resolves every (block, term,
// dim) operator tile into a slice view. Rebuild by constructing a new
// engine when the grid adapts; the lists are read-only during Apply.
func (kmat *TableKronmult[P]) prepareLists() {
	var (
		rng  = kmat.Range
		nb   = rng.Size()
		aops = make([][]P, nb*kmat.NumTerms*kmat.Dims)
		i    int
	)
	for r := rng.RowStart; r < rng.RowEnd; r++ {
		for c := rng.ColStart; c < rng.ColEnd; c++ {
			for t := 0; t < kmat.NumTerms; t++ {
				for d := 0; d < kmat.Dims; d++ {
					var (
						row = kmat.set.Coord(r, d) * kmat.N
						col = kmat.set.Coord(c, d) * kmat.N
					)
					aops[i] = kmat.coeffs[t*kmat.Dims+d][row*kmat.lda+col:]
					i++
				}
			}
		}
	}
	kmat.aops = aops
}

func (kmat *TableKronmult[P]) BlockSize() int { return utils.Ipow(kmat.N, kmat.Dims) }

func (kmat *TableKronmult[P]) InputSize() int  { return kmat.Range.NumCols() * kmat.BlockSize() }
func (kmat *TableKronmult[P]) OutputSize() int { return kmat.Range.NumRows() * kmat.BlockSize() }

// Apply computes y = beta*y + alpha*A*x with x local to the column range
// and y local to the row range.
func (kmat *TableKronmult[P]) Apply(alpha P, x []P, beta P, y []P) error {
	var (
		bs   = kmat.BlockSize()
		rng  = kmat.Range
		nr   = rng.NumRows()
		nc   = rng.NumCols()
		perR = nc * kmat.NumTerms * kmat.Dims
	)
	if nr <= 0 || nc <= 0 {
		return nil
	}
	if len(x) < kmat.InputSize() || len(y) < kmat.OutputSize() {
		return fmt.Errorf("vector sizes %d, %d do not match block range %d x %d",
			len(x), len(y), kmat.OutputSize(), kmat.InputSize())
	}
	var (
		pm = utils.NewPartitionMap(kmat.workers, nr)
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
				for c := 0; c < nc; c++ {
					var (
						xb   = x[c*bs : (c+1)*bs]
						base = r*perR + c*kmat.NumTerms*kmat.Dims
					)
					for t := 0; t < kmat.NumTerms; t++ {
						ops := kmat.aops[base+t*kmat.Dims : base+(t+1)*kmat.Dims]
						kronBlock(kmat.Dims, kmat.N, kmat.lda, ops, alpha, xb, w, w2, yb)
					}
				}
			}
		}(bn)
	}
	wg.Wait()
	return nil
}
