package interp

import (
	"fmt"

	"github.com/statmech/kronwave/connect"
	"github.com/statmech/kronwave/grid"
	"github.com/statmech/kronwave/kronmult"
	"github.com/statmech/kronwave/utils"
)

// Interpolation converts between the three representations of a function on
// a sparse-grid index set: Legendre projection coefficients, point values
// on the hierarchical nodes, and hierarchical (surplus) coefficients in the
// cardinal interpolation basis.
//
// The three 1D transform matrices are assembled once per connectivity and
// stored aligned to the connect_1d offsets in n x n tiles:
//
//	pn: projection -> nodal, tile (r, c) = projection basis of c at nodes of r
//	hi: interpolation basis of c at nodes of r, strictly hierarchical,
//	    consumed by the in-place nodal -> hierarchical forward substitution
//	hp: hierarchical -> projection, tile (r, c) = integrals of the
//	    interpolation basis of c against the projection basis of r
//
// The multidimensional transforms run through the global kron engine.
type Interpolation[P utils.Scalar] struct {
	Degree int
	conn   *connect.Connect1D
	basis  basis1d

	pn, hi, hp []P

	w1, w2 []P
}

func NewInterpolation[P utils.Scalar](degree int, conn *connect.Connect1D) (ip *Interpolation[P], err error) {
	if degree != 1 && degree != 2 {
		return nil, fmt.Errorf("interpolation supports degrees 1 and 2, got %d", degree)
	}
	ip = &Interpolation[P]{
		Degree: degree,
		conn:   conn,
		basis:  basis1d{degree: degree},
	}
	ip.makeMatrices()
	return
}

func (ip *Interpolation[P]) makeMatrices() {
	var (
		n    = ip.Degree
		conn = ip.conn
		nn   = n * n
	)
	ip.pn = make([]P, conn.NumConnections()*nn)
	ip.hi = make([]P, conn.NumConnections()*nn)
	ip.hp = make([]P, conn.NumConnections()*nn)
	for r := 0; r < conn.NumCells(); r++ {
		for j := conn.RowBegin(r); j < conn.RowEnd(r); j++ {
			var (
				c    = conn.Get(j)
				tile = j * nn
			)
			for a := 0; a < n; a++ {
				x := ip.basis.node(r, a)
				for b := 0; b < n; b++ {
					ip.pn[tile+a*n+b] = P(ip.basis.projEval(c, b, x))
					ip.hi[tile+a*n+b] = P(ip.basis.interpEval(c, b, x))
					ip.hp[tile+a*n+b] = P(ip.basis.projInterpProduct(r, a, c, b))
				}
			}
		}
	}
}

func (ip *Interpolation[P]) blockSize(numDims int) int { return utils.Ipow(ip.Degree, numDims) }

func (ip *Interpolation[P]) workspace(size int) (w1, w2 []P) {
	if len(ip.w1) < size {
		ip.w1 = make([]P, size)
		ip.w2 = make([]P, size)
	}
	return ip.w1, ip.w2
}

// GetNodes returns the interpolation nodes of the index set as
// N*degree^numDims rows of numDims coordinates, blocks in cell order and
// node tuples with the last dimension varying fastest.
func (ip *Interpolation[P]) GetNodes(set *grid.IndexSet) (nodes []float64) {
	var (
		numDims = set.NumDims
		n       = ip.Degree
		bs      = ip.blockSize(numDims)
	)
	nodes = make([]float64, set.NumCells()*bs*numDims)
	row := 0
	for i := 0; i < set.NumCells(); i++ {
		cell := set.Cell(i)
		for j := 0; j < bs; j++ {
			rem := j
			for d := numDims - 1; d >= 0; d-- {
				nodes[row*numDims+d] = ip.basis.node(cell[d], rem%n)
				rem /= n
			}
			row++
		}
	}
	return
}

// GetNodalValues evaluates projection-coefficient vectors at the nodes.
// proj holds numTerms stacked coefficient vectors; their nodal values are
// summed into nodal.
func (ip *Interpolation[P]) GetNodalValues(set *grid.IndexSet, ds *grid.DimensionSort,
	numTerms int, proj, nodal []P) error {
	return ip.applyGlobal(set, ds, numTerms, ip.pn, proj, nodal)
}

// GetProjectionCoeffs computes the Legendre projection of the hierarchical
// interpolant: proj = (hp (x) ... (x) hp) hier.
func (ip *Interpolation[P]) GetProjectionCoeffs(set *grid.IndexSet, ds *grid.DimensionSort,
	hier, proj []P) error {
	return ip.applyGlobal(set, ds, 1, ip.hp, hier, proj)
}

func (ip *Interpolation[P]) applyGlobal(set *grid.IndexSet, ds *grid.DimensionSort,
	numTerms int, tiles []P, in, out []P) error {
	var (
		numDims = set.NumDims
		size    = set.NumCells() * ip.blockSize(numDims)
		perms   = kronmult.NewPermutes(numDims)
		w1, w2  = ip.workspace(size)
		vals    = make([][]P, numDims)
	)
	if len(in) < numTerms*size || len(out) < size {
		return fmt.Errorf("vector sizes %d, %d below the %d entries of the index set", len(in), len(out), size)
	}
	for d := range vals {
		vals[d] = tiles
	}
	for t := 0; t < numTerms; t++ {
		var beta P
		if t > 0 {
			beta = 1
		}
		if err := kronmult.Global(perms, set, ds, ip.conn, ip.Degree,
			[][][]P{vals}, 1, in[t*size:(t+1)*size], beta, out, w1, w2); err != nil {
			return err
		}
	}
	return nil
}

// ComputeHierarchicalCoeffs converts nodal values to hierarchical surplus
// coefficients in place: each dimension is swept once, subtracting from
// every cell the interpolant of its coarser neighbours within the strip,
// coarse to fine.
func (ip *Interpolation[P]) ComputeHierarchicalCoeffs(set *grid.IndexSet, ds *grid.DimensionSort,
	vals []P) error {
	var (
		numDims = set.NumDims
		n       = ip.Degree
		nn      = n * n
		bs      = ip.blockSize(numDims)
		size    = set.NumCells() * bs
	)
	if len(vals) < size {
		return fmt.Errorf("vector size %d below the %d entries of the index set", len(vals), size)
	}
	for dim := 0; dim < numDims; dim++ {
		stride := utils.Ipow(n, numDims-1-dim)
		for strip := 0; strip < ds.NumStrips(dim); strip++ {
			var (
				b, e = ds.StripBegin(dim, strip), ds.StripEnd(dim, strip)
			)
			for jr := b + 1; jr < e; jr++ {
				var (
					rowCell = ds.Coord(dim, jr)
					rowBase = ds.Map(dim, jr) * bs
				)
				for jc := b; jc < jr; jc++ {
					var (
						colCell = ds.Coord(dim, jc)
						off     = ip.conn.GetOffset(rowCell, colCell)
					)
					if off < 0 {
						continue
					}
					tile := ip.hi[off*nn : (off+1)*nn]
					for hi := 0; hi < bs/(n*stride); hi++ {
						base := hi * n * stride
						for lo := 0; lo < stride; lo++ {
							var (
								colBase = ds.Map(dim, jc)*bs + base + lo
							)
							for a := 0; a < n; a++ {
								var acc P
								for bb := 0; bb < n; bb++ {
									acc += tile[a*n+bb] * vals[colBase+bb*stride]
								}
								vals[rowBase+base+lo+a*stride] -= acc
							}
						}
					}
				}
			}
		}
	}
	return nil
}
