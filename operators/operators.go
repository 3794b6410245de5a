package operators

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/statmech/kronwave/connect"
	"github.com/statmech/kronwave/grid"
	"github.com/statmech/kronwave/kronmult"
	"github.com/statmech/kronwave/utils"
)

// IMEXFlag selects which term group an apply touches.
type IMEXFlag uint8

const (
	IMEXUnspecified IMEXFlag = iota // every term
	IMEXExplicit
	IMEXImplicit
)

// Term is one additive tensor-product summand of the operator: per
// dimension, coefficient values aligned to the connect_1d pattern in
// n x n tiles. A nil dimension entry is the identity.
type Term[P utils.Scalar] struct {
	Vals [][]P
	Flag IMEXFlag
}

// KronOps is the operator subsystem: it owns the connectivity, the
// coefficient blocks of every term and the scratch workspace, and exposes
// the matrix-free apply the solvers drive. Concurrent applies on the same
// object are forbidden; the coefficient blocks are read-only during a call.
type KronOps[P utils.Scalar] struct {
	Degree int
	Set    *grid.IndexSet
	Sort   *grid.DimensionSort
	Conn   *connect.Connect1D
	Terms  []Term[P]

	perms  kronmult.Permutes
	w1, w2 []P
}

func NewKronOps[P utils.Scalar](degree int, set *grid.IndexSet, conn *connect.Connect1D,
	terms []Term[P]) (ops *KronOps[P], err error) {
	if degree < 1 || degree > 10 {
		return nil, fmt.Errorf("invalid degree: %d, supported range is 1..10", degree)
	}
	for t, term := range terms {
		if len(term.Vals) != set.NumDims {
			return nil, fmt.Errorf("term %d carries %d dimensions, index set has %d",
				t, len(term.Vals), set.NumDims)
		}
	}
	var (
		size = set.NumCells() * utils.Ipow(degree, set.NumDims)
		nt   = len(terms)
	)
	if nt == 0 {
		nt = 1
	}
	ops = &KronOps[P]{
		Degree: degree,
		Set:    set,
		Sort:   grid.NewDimensionSort(set),
		Conn:   conn,
		Terms:  terms,
		perms:  kronmult.NewPermutes(set.NumDims),
		w1:     make([]P, size*nt),
		w2:     make([]P, size*nt),
	}
	return
}

func (ops *KronOps[P]) BlockSize() int { return utils.Ipow(ops.Degree, ops.Set.NumDims) }
func (ops *KronOps[P]) Size() int      { return ops.Set.NumCells() * ops.BlockSize() }

func (ops *KronOps[P]) selected(flag IMEXFlag) (vals [][][]P) {
	for _, term := range ops.Terms {
		if flag == IMEXUnspecified || term.Flag == flag || term.Flag == IMEXUnspecified {
			vals = append(vals, term.Vals)
		}
	}
	return
}

// Apply computes y = beta*y + alpha*K_flag*x through the global kron
// engine.
func (ops *KronOps[P]) Apply(flag IMEXFlag, alpha P, x []P, beta P, y []P) error {
	return kronmult.Global(ops.perms, ops.Set, ops.Sort, ops.Conn, ops.Degree,
		ops.selected(flag), alpha, x, beta, y, ops.w1, ops.w2)
}

// Diagonal reports the diagonal of K_flag per cell and intra-cell degree,
// the source of the solver-side Jacobi preconditioner.
func (ops *KronOps[P]) Diagonal(flag IMEXFlag) (diag []P) {
	var (
		n       = ops.Degree
		numDims = ops.Set.NumDims
		bs      = ops.BlockSize()
	)
	diag = make([]P, ops.Size())
	for i := 0; i < ops.Set.NumCells(); i++ {
		cell := ops.Set.Cell(i)
		for j := 0; j < bs; j++ {
			var sum P
			for _, vals := range ops.selected(flag) {
				prod := P(1)
				rem := j
				for d := numDims - 1; d >= 0; d-- {
					jd := rem % n
					rem /= n
					if vals[d] == nil {
						continue
					}
					off := ops.Conn.GetOffset(cell[d], cell[d])
					prod *= vals[d][off*n*n+jd*n+jd]
				}
				sum += prod
			}
			diag[i*bs+j] = sum
		}
	}
	return
}

// BuildLocal assembles the precomputed-iA local engine equivalent to
// K_flag over the current grid: a block (r, c) is active when the cells
// connect in every dimension. Rebuilt whenever the grid adapts.
func (ops *KronOps[P]) BuildLocal(flag IMEXFlag) (kmat *kronmult.LocalKronmult[P], err error) {
	var (
		n       = ops.Degree
		nn      = n * n
		numDims = ops.Set.NumDims
		num     = ops.Set.NumCells()
		terms   = ops.selected(flag)
		pntr    = make([]int, num+1)
		indx    []int
		iA      []int
		vA      []P
		base    = make([][]int, len(terms))
		ident   = -1
		zero    = -1
	)
	for t, vals := range terms {
		base[t] = make([]int, numDims)
		for d := range vals {
			if vals[d] == nil {
				if ident < 0 {
					ident = len(vA)
					for a := 0; a < n; a++ {
						for b := 0; b < n; b++ {
							if a == b {
								vA = append(vA, 1)
							} else {
								vA = append(vA, 0)
							}
						}
					}
				}
				base[t][d] = -1
				continue
			}
			base[t][d] = len(vA)
			vA = append(vA, vals[d]...)
		}
	}
	offs := make([]int, numDims)
	for r := 0; r < num; r++ {
		pntr[r] = len(indx)
		for c := 0; c < num; c++ {
			ok := true
			for d := 0; d < numDims; d++ {
				offs[d] = ops.Conn.GetOffset(ops.Set.Coord(r, d), ops.Set.Coord(c, d))
				if offs[d] < 0 {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			indx = append(indx, c)
			for t := range terms {
				for d := 0; d < numDims; d++ {
					if base[t][d] < 0 {
						// an identity dimension contributes the unit tile on
						// matching cells and a zero tile elsewhere
						if ops.Set.Coord(r, d) == ops.Set.Coord(c, d) {
							iA = append(iA, ident)
						} else {
							if zero < 0 {
								zero = len(vA)
								vA = append(vA, make([]P, nn)...)
							}
							iA = append(iA, zero)
						}
						continue
					}
					iA = append(iA, base[t][d]+offs[d]*nn)
				}
			}
		}
	}
	pntr[num] = len(indx)
	return kronmult.NewLocalKronmult(numDims, n, num, num, len(terms), pntr, indx, iA, vA)
}

// AlignDense converts a dense 1D operator over composite (cell, degree)
// indices, leading dimension NumCells*n, into connect-aligned tile storage.
func AlignDense[P utils.Scalar](conn *connect.Connect1D, n int, m mat.Matrix) (vals []P, err error) {
	var (
		nr, nc = m.Dims()
		want   = conn.NumCells() * n
	)
	if nr != want || nc != want {
		return nil, fmt.Errorf("operator is %d x %d, connectivity requires %d x %d", nr, nc, want, want)
	}
	vals = make([]P, conn.NumConnections()*n*n)
	for r := 0; r < conn.NumCells(); r++ {
		for j := conn.RowBegin(r); j < conn.RowEnd(r); j++ {
			c := conn.Get(j)
			for a := 0; a < n; a++ {
				for b := 0; b < n; b++ {
					vals[j*n*n+a*n+b] = P(m.At(r*n+a, c*n+b))
				}
			}
		}
	}
	return
}

// AlignCSR converts a sparse 1D operator assembled as a james-bowman CSR
// into connect-aligned tile storage. Entries outside the connectivity
// pattern are rejected: the operator subsystem guarantees shape
// consistency with connect_1d.
func AlignCSR[P utils.Scalar](conn *connect.Connect1D, n int, m *sparse.CSR) (vals []P, err error) {
	var (
		nr, nc = m.Dims()
		want   = conn.NumCells() * n
	)
	if nr != want || nc != want {
		return nil, fmt.Errorf("operator is %d x %d, connectivity requires %d x %d", nr, nc, want, want)
	}
	vals = make([]P, conn.NumConnections()*n*n)
	var derr error
	m.DoNonZero(func(i, j int, v float64) {
		var (
			r, a = i / n, i % n
			c, b = j / n, j % n
			off  = conn.GetOffset(r, c)
		)
		if off < 0 {
			derr = fmt.Errorf("entry (%d, %d) falls outside the connectivity pattern", i, j)
			return
		}
		vals[off*n*n+a*n+b] = P(v)
	})
	return vals, derr
}
