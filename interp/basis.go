package interp

import (
	"math"

	"github.com/statmech/kronwave/connect"
)

const s3 = 1.73205080756887729 // sqrt(3)

// cellBounds returns the support [a, a+h] of a 1D cell on [0, 1].
func cellBounds(cell int) (a, h float64) {
	level, offset := connect.CellLevel(cell)
	if level <= 1 {
		return 0, 1
	}
	h = math.Exp2(float64(1 - level))
	a = float64(offset) * h
	return
}

// basis1d evaluates the degree-1 (constant/Haar) or degree-2 (linear)
// hierarchical bases. The projection family is L2-orthonormal; the
// interpolation family is cardinal on the node set: each function is 1 at
// its own node and 0 at the nodes of every other cell that is not a strict
// descendant of its own.
type basis1d struct {
	degree int
}

// node returns the j-th interpolation node of a cell. Degree 2 places the
// two nodes at thirds of the child half-intervals; degree 1 uses the
// midpoint of the support (the left end of its right half), and 0 on cell 0.
func (b basis1d) node(cell, j int) float64 {
	a, h := cellBounds(cell)
	if b.degree == 1 {
		if cell == 0 {
			return 0
		}
		return a + h/2
	}
	if cell == 0 {
		return float64(j+1) / 3.
	}
	if j == 0 {
		return a + h/6
	}
	return a + 5*h/6
}

// projEval evaluates the k-th projection basis function of a cell,
// returning 0 outside its support. Piecewise functions are taken
// right-continuous at the midpoint break.
func (b basis1d) projEval(cell, k int, x float64) float64 {
	if cell == 0 {
		if b.degree == 1 || k == 0 {
			return 1
		}
		return 2*s3*x - s3 // shifted Legendre
	}
	var (
		a, h  = cellBounds(cell)
		level = cellScale(cell)
	)
	if x < a || x >= a+h {
		if !(x == 1 && a+h == 1) {
			return 0
		}
	}
	u := (x - a) / h
	if b.degree == 1 {
		if u < 0.5 {
			return level
		}
		return -level
	}
	if k == 0 {
		if u < 0.5 {
			return level * s3 * (1 - 4*u)
		}
		return level * s3 * (-3 + 4*u)
	}
	if u < 0.5 {
		return level * (-1 + 6*u)
	}
	return level * (-5 + 6*u)
}

// interpEval evaluates the k-th interpolation basis function of a cell.
func (b basis1d) interpEval(cell, k int, x float64) float64 {
	if cell == 0 {
		if b.degree == 1 {
			return 1
		}
		if k == 0 {
			return -3*x + 2
		}
		return 3*x - 1
	}
	var (
		a, h = cellBounds(cell)
	)
	if x < a || x >= a+h {
		if !(x == 1 && a+h == 1) {
			return 0
		}
	}
	u := (x - a) / h
	if b.degree == 1 {
		if u >= 0.5 {
			return 1
		}
		return 0
	}
	if k == 0 {
		if u < 0.5 {
			return -6*u + 2
		}
		return 0
	}
	if u < 0.5 {
		return 0
	}
	return 6*u - 4
}

// cellScale is the L2 normalization 2^((level-1)/2) of wavelet cells.
func cellScale(cell int) float64 {
	level, _ := connect.CellLevel(cell)
	if level <= 1 {
		return 1
	}
	return math.Exp2(float64(level-1) / 2)
}

// gauss3 integrates f over [a, b] with 3-point Gauss-Legendre, exact
// through degree 5.
func gauss3(f func(float64) float64, a, b float64) float64 {
	if b <= a {
		return 0
	}
	var (
		c  = 0.5 * (a + b)
		hw = 0.5 * (b - a)
		p  = hw * math.Sqrt(3./5.)
	)
	return hw * (5.*(f(c-p)+f(c+p)) + 8.*f(c)) / 9.
}

// projInterpProduct integrates the projection function (rCell, a) against
// the interpolation function (cCell, b), splitting at both midpoints so
// every Gauss panel sees a smooth integrand.
func (bs basis1d) projInterpProduct(rCell, ra, cCell, cb int) (sum float64) {
	var (
		a1, h1 = cellBounds(rCell)
		a2, h2 = cellBounds(cCell)
		lo     = math.Max(a1, a2)
		hi     = math.Min(a1+h1, a2+h2)
	)
	if hi <= lo {
		return 0
	}
	pts := []float64{lo, a1 + h1/2, a2 + h2/2, hi}
	for i := range pts {
		pts[i] = math.Min(math.Max(pts[i], lo), hi)
	}
	// ascending unique panel bounds
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			if pts[j] < pts[i] {
				pts[i], pts[j] = pts[j], pts[i]
			}
		}
	}
	f := func(x float64) float64 {
		return bs.projEval(rCell, ra, x) * bs.interpEval(cCell, cb, x)
	}
	for i := 1; i < len(pts); i++ {
		sum += gauss3(f, pts[i-1], pts[i])
	}
	return
}
