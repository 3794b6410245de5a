package interp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/statmech/kronwave/connect"
	"github.com/statmech/kronwave/grid"
	"github.com/statmech/kronwave/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cellsD2P5() *grid.IndexSet {
	return grid.NewIndexSet(2, []int{0, 0, 0, 1, 0, 2, 0, 3, 1, 0})
}

func TestNodeTable2D(t *testing.T) {
	var (
		conn = connect.New(2, connect.Volume)
		set  = cellsD2P5()
	)
	ip, err := NewInterpolation[float64](2, conn)
	require.NoError(t, err)
	nodes := ip.GetNodes(set)
	gold := []float64{
		// (0, 0)
		1. / 3, 1. / 3, 1. / 3, 2. / 3, 2. / 3, 1. / 3, 2. / 3, 2. / 3,
		// (0, 1)
		1. / 3, 1. / 6, 1. / 3, 5. / 6, 2. / 3, 1. / 6, 2. / 3, 5. / 6,
		// (0, 2)
		1. / 3, 1. / 12, 1. / 3, 5. / 12, 2. / 3, 1. / 12, 2. / 3, 5. / 12,
		// (0, 3)
		1. / 3, 7. / 12, 1. / 3, 11. / 12, 2. / 3, 7. / 12, 2. / 3, 11. / 12,
		// (1, 0)
		1. / 6, 1. / 3, 1. / 6, 2. / 3, 5. / 6, 1. / 3, 5. / 6, 2. / 3,
	}
	require.Len(t, nodes, 2*20)
	for i := range gold {
		assert.InDelta(t, gold[i], nodes[i], 1.e-15, "node coord %d", i)
	}
}

func TestNodalValuesOfConstant(t *testing.T) {
	var (
		L    = 3
		conn = connect.New(L, connect.Volume)
		set  = grid.NewLevelSet(2, L)
		ds   = grid.NewDimensionSort(set)
		size = set.NumCells() * 4
	)
	ip, err := NewInterpolation[float64](2, conn)
	require.NoError(t, err)
	// the projection coefficient of the constant function is e_0
	proj := make([]float64, size)
	proj[0] = 1
	nodal := make([]float64, size)
	require.NoError(t, ip.GetNodalValues(set, ds, 1, proj, nodal))
	for i, v := range nodal {
		assert.InDelta(t, 1.0, v, 1.e-12, "node %d", i)
	}
}

func hierCase2D(t *testing.T, exactBasis int, f func(x, y float64) float64) {
	var (
		conn = connect.New(2, connect.Volume)
		set  = cellsD2P5()
		ds   = grid.NewDimensionSort(set)
	)
	ip, err := NewInterpolation[float64](2, conn)
	require.NoError(t, err)
	nodes := ip.GetNodes(set)
	vals := make([]float64, 20)
	for i := range vals {
		vals[i] = f(nodes[2*i], nodes[2*i+1])
	}
	require.NoError(t, ip.ComputeHierarchicalCoeffs(set, ds, vals))
	assert.InDelta(t, 1.0, vals[exactBasis], 1.e-12)
	nrm := 0.0
	for _, v := range vals {
		nrm += v * v
	}
	assert.InDelta(t, 1.0, nrm, 1.e-12)
}

func TestHierarchicalCoeffs2D(t *testing.T) {
	var (
		b     = basis1d{degree: 2}
		ibas0 = func(x float64) float64 { return b.interpEval(0, 0, x) }
		ibas1 = func(x float64) float64 { return b.interpEval(0, 1, x) }
		iwav0 = func(x float64) float64 { return b.interpEval(1, 0, x) }
		iwav1 = func(x float64) float64 { return b.interpEval(1, 1, x) }
	)
	hierCase2D(t, 0, func(x, y float64) float64 { return ibas0(x) * ibas0(y) })
	hierCase2D(t, 1, func(x, y float64) float64 { return ibas0(x) * ibas1(y) })
	hierCase2D(t, 2, func(x, y float64) float64 { return ibas1(x) * ibas0(y) })
	hierCase2D(t, 3, func(x, y float64) float64 { return ibas1(x) * ibas1(y) })
	hierCase2D(t, 4, func(x, y float64) float64 { return ibas0(x) * iwav0(y) })
	hierCase2D(t, 5, func(x, y float64) float64 { return ibas0(x) * iwav1(y) })
	hierCase2D(t, 6, func(x, y float64) float64 { return ibas1(x) * iwav0(y) })
	hierCase2D(t, 7, func(x, y float64) float64 { return ibas1(x) * iwav1(y) })
	hierCase2D(t, 16, func(x, y float64) float64 { return iwav0(x) * ibas0(y) })
	hierCase2D(t, 17, func(x, y float64) float64 { return iwav0(x) * ibas1(y) })
	hierCase2D(t, 18, func(x, y float64) float64 { return iwav1(x) * ibas0(y) })
	hierCase2D(t, 19, func(x, y float64) float64 { return iwav1(x) * ibas1(y) })
}

func roundTripIdentity[P utils.Scalar](t *testing.T, degree, numDims, level int, tol float64) {
	var (
		rng  = rand.New(rand.NewSource(42))
		conn = connect.New(level, connect.Volume)
		set  = grid.NewLevelSet(numDims, level)
		ds   = grid.NewDimensionSort(set)
		size = set.NumCells() * utils.Ipow(degree, numDims)
	)
	ip, err := NewInterpolation[P](degree, conn)
	require.NoError(t, err)
	var (
		proj    = make([]P, size)
		nodal   = make([]P, size)
		inverse = make([]P, size)
	)
	for run := 0; run < 5; run++ {
		for i := range proj {
			proj[i] = P(2*rng.Float64() - 1)
		}
		require.NoError(t, ip.GetNodalValues(set, ds, 1, proj, nodal))
		require.NoError(t, ip.ComputeHierarchicalCoeffs(set, ds, nodal))
		require.NoError(t, ip.GetProjectionCoeffs(set, ds, nodal, inverse))
		var diff float64
		for i := range proj {
			diff = math.Max(diff, math.Abs(float64(proj[i]-inverse[i])))
		}
		require.Less(t, diff, tol, "degree=%d dims=%d level=%d run=%d", degree, numDims, level, run)
	}
}

func TestRoundTripIdentityDouble(t *testing.T) {
	roundTripIdentity[float64](t, 2, 1, 3, 1.e-12)
	roundTripIdentity[float64](t, 2, 1, 5, 1.e-12)
	roundTripIdentity[float64](t, 2, 2, 4, 1.e-12)
	roundTripIdentity[float64](t, 2, 2, 6, 1.e-11)
	roundTripIdentity[float64](t, 2, 3, 6, 1.e-11)
	roundTripIdentity[float64](t, 2, 4, 4, 1.e-11)
}

func TestRoundTripIdentitySingle(t *testing.T) {
	roundTripIdentity[float32](t, 2, 2, 4, 1.e-4)
	roundTripIdentity[float32](t, 2, 3, 4, 1.e-4)
}

func TestRoundTripIdentityDegreeOne(t *testing.T) {
	roundTripIdentity[float64](t, 1, 1, 4, 1.e-12)
	roundTripIdentity[float64](t, 1, 2, 4, 1.e-12)
	roundTripIdentity[float64](t, 1, 3, 5, 1.e-11)
}

func TestRandomIdentityLarge(t *testing.T) {
	// d=3, L=6, degree 2 over five random draws
	roundTripIdentity[float64](t, 2, 3, 6, 1.e-11)
}

func TestDegreeValidation(t *testing.T) {
	conn := connect.New(2, connect.Volume)
	_, err := NewInterpolation[float64](3, conn)
	assert.Error(t, err)
}

func TestCardinalInterpolationBasis(t *testing.T) {
	// every interpolation function is 1 at its own nodes and 0 at the
	// nodes of every cell that is not a strict descendant
	var (
		L = 4
		b = basis1d{degree: 2}
	)
	descendant := func(r, c int) bool {
		ra, rb := connect.CellSupport(r, L)
		ca, cb := connect.CellSupport(c, L)
		return r > c && ca <= ra && rb <= cb
	}
	for c := 0; c < connect.NumCells(L); c++ {
		for r := 0; r < connect.NumCells(L); r++ {
			for a := 0; a < 2; a++ {
				x := b.node(r, a)
				for k := 0; k < 2; k++ {
					got := b.interpEval(c, k, x)
					switch {
					case r == c:
						want := 0.0
						if a == k {
							want = 1.0
						}
						assert.InDelta(t, want, got, 1.e-13, "own cell %d node %d fn %d", c, a, k)
					case !descendant(r, c):
						assert.InDelta(t, 0.0, got, 1.e-13, "cell %d at node of %d", c, r)
					}
				}
			}
		}
	}
}
