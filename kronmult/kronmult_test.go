package kronmult

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

func TestKroneckerReference(t *testing.T) {
	A := []float64{1, 2, 3, 4}
	B := []float64{10, 20, 30, 40}
	gold := []float64{10, 20, 20, 40, 30, 40, 60, 80,
		30, 60, 40, 80, 90, 120, 120, 160}
	assert.Equal(t, gold, kronecker(2, A, 2, B))

	B = []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	gold = []float64{1, 2, 3, 2, 4, 6, 4, 5, 6, 8, 10, 12,
		7, 8, 9, 14, 16, 18, 3, 6, 9, 4, 8, 12,
		12, 15, 18, 16, 20, 24, 21, 24, 27, 28, 32, 36}
	assert.Equal(t, gold, kronecker(2, A, 3, B))
}

// denseKron expands term operator tiles into the full n^d x n^d matrix.
func denseKron(dims, n int, ops [][]float64) (r []float64) {
	r = append([]float64{}, ops[0]...)
	size := n
	for d := 1; d < dims; d++ {
		r = kronecker(size, r, n, ops[d])
		size *= n
	}
	return
}

func randSlice(rng *rand.Rand, n int) (r []float64) {
	r = make([]float64, n)
	for i := range r {
		r[i] = 2*rng.Float64() - 1
	}
	return
}

func testLocalAgainstReference(t *testing.T, dims, n, numRows, numTerms int) {
	var (
		rng = rand.New(rand.NewSource(42))
		bs  = utils.Ipow(n, dims)
	)
	// dense block pattern over numRows x numRows
	pntr := make([]int, numRows+1)
	indx := make([]int, numRows*numRows)
	for i := 0; i < numRows; i++ {
		pntr[i] = i * numRows
		for j := 0; j < numRows; j++ {
			indx[i*numRows+j] = j
		}
	}
	pntr[numRows] = len(indx)

	// a pool of operator tiles, blocks pick from it through iA
	var (
		numMats = 7
		vA      = randSlice(rng, numMats*n*n)
		iA      = make([]int, len(indx)*numTerms*dims)
	)
	for i := range iA {
		iA[i] = n * n * rng.Intn(numMats)
	}

	kmat, err := NewLocalKronmult(dims, n, numRows, numRows, numTerms, pntr, indx, iA, vA)
	require.NoError(t, err)

	var (
		x = randSlice(rng, kmat.InputSize())
		y = randSlice(rng, kmat.OutputSize())
	)
	ref := append([]float64{}, y...)
	// quadratic-time reference: expand every block tensor product
	for r := 0; r < numRows; r++ {
		for j := pntr[r]; j < pntr[r+1]; j++ {
			c := indx[j]
			for term := 0; term < numTerms; term++ {
				ops := make([][]float64, dims)
				for d := 0; d < dims; d++ {
					off := iA[(j*numTerms+term)*dims+d]
					ops[d] = vA[off : off+n*n]
				}
				full := denseKron(dims, n, ops)
				for a := 0; a < bs; a++ {
					var acc float64
					for b := 0; b < bs; b++ {
						acc += full[a*bs+b] * x[c*bs+b]
					}
					ref[r*bs+a] += acc
				}
			}
		}
	}
	require.NoError(t, kmat.Apply(1.0, x, 1.0, y))
	for i := range y {
		assert.InDelta(t, ref[i], y[i], 1.e-10, "entry %d", i)
	}
}

func TestLocalKronmultCPU(t *testing.T) {
	testLocalAgainstReference(t, 1, 2, 10, 2)
	testLocalAgainstReference(t, 2, 3, 12, 3)
	testLocalAgainstReference(t, 3, 2, 12, 2)
	testLocalAgainstReference(t, 4, 2, 9, 2)
	testLocalAgainstReference(t, 5, 2, 8, 2)
	testLocalAgainstReference(t, 6, 2, 6, 2)
	for n := 1; n <= 5; n++ {
		testLocalAgainstReference(t, 2, n, 5, 2)
	}
}

func TestLocalKronmultBetaZeroOverwrites(t *testing.T) {
	var (
		n    = 2
		pntr = []int{0, 1}
		indx = []int{0}
		iA   = []int{0}
		vA   = []float64{1, 0, 0, 1}
	)
	kmat, err := NewLocalKronmult(1, n, 1, 1, 1, pntr, indx, iA, vA)
	require.NoError(t, err)
	y := []float64{math.NaN(), math.NaN()}
	require.NoError(t, kmat.Apply(1.0, []float64{3, 4}, 0.0, y))
	assert.Equal(t, []float64{3, 4}, y)
}

func TestTableMatchesLocal(t *testing.T) {
	var (
		rng      = rand.New(rand.NewSource(7))
		dims     = 2
		n        = 2
		L        = 3
		set      = grid.NewLevelSet(dims, L)
		num      = set.NumCells()
		numTerms = 2
		num1d    = connect.NumCells(L)
		lda      = num1d * n
	)
	coeffs := make([][]float64, numTerms*dims)
	for i := range coeffs {
		coeffs[i] = randSlice(rng, lda*lda)
	}
	rngBlocks := BlockRange{RowStart: 0, RowEnd: num, ColStart: 0, ColEnd: num}
	kt, err := NewTableKronmult(set, n, numTerms, coeffs, lda, rngBlocks)
	require.NoError(t, err)

	// the same operator through the precomputed-iA form
	var (
		pntr = make([]int, num+1)
		indx []int
		iA   []int
		vA   []float64
	)
	for r := 0; r < num; r++ {
		pntr[r] = len(indx)
		for c := 0; c < num; c++ {
			indx = append(indx, c)
			for term := 0; term < numTerms; term++ {
				for d := 0; d < dims; d++ {
					var (
						mat  = coeffs[term*dims+d]
						row  = set.Coord(r, d) * n
						col  = set.Coord(c, d) * n
						tile = make([]float64, n*n)
					)
					for a := 0; a < n; a++ {
						for b := 0; b < n; b++ {
							tile[a*n+b] = mat[(row+a)*lda+col+b]
						}
					}
					iA = append(iA, len(vA))
					vA = append(vA, tile...)
				}
			}
		}
	}
	pntr[num] = len(indx)
	kl, err := NewLocalKronmult(dims, n, num, num, numTerms, pntr, indx, iA, vA)
	require.NoError(t, err)

	var (
		x  = randSlice(rng, kt.InputSize())
		y1 = make([]float64, kt.OutputSize())
		y2 = make([]float64, kt.OutputSize())
	)
	require.NoError(t, kt.Apply(0.5, x, 0.0, y1))
	require.NoError(t, kl.Apply(0.5, x, 0.0, y2))
	for i := range y1 {
		assert.InDelta(t, y2[i], y1[i], 1.e-12)
	}
}

func TestGlobalSimple1D(t *testing.T) {
	var (
		rng     = rand.New(rand.NewSource(42))
		nindex  = []int{10, 20, 44}
		levels  = []int{4, 5, 6}
		permOne = NewPermutes(1)
	)
	for tc := range nindex {
		var (
			conn = connect.New(levels[tc], connect.Volume)
			num  = nindex[tc]
		)
		packed := make([]int, num)
		for i := range packed {
			packed[i] = i
		}
		var (
			set  = grid.NewIndexSet(1, packed)
			ds   = grid.NewDimensionSort(set)
			vals = randSlice(rng, conn.NumConnections())
			x    = randSlice(rng, num)
			yRef = make([]float64, num)
		)
		for i := 0; i < num; i++ {
			for j := 0; j < num; j++ {
				if off := conn.GetOffset(i, j); off > -1 {
					yRef[i] += x[j] * vals[off]
				}
			}
		}
		var (
			y  = make([]float64, num)
			w1 = make([]float64, num)
			w2 = make([]float64, num)
		)
		require.NoError(t, Global(permOne, set, ds, conn, 1,
			[][][]float64{{vals}}, 1.0, x, 0.0, y, w1, w2))
		for i := range y {
			assert.InDelta(t, yRef[i], y[i], 1.e-13)
		}
	}
}

func testGlobalKron(t *testing.T, dims, level int) {
	var (
		rng   = rand.New(rand.NewSource(42))
		set   = grid.NewLevelSet(dims, level)
		conn  = connect.New(level, connect.Volume)
		ds    = grid.NewDimensionSort(set)
		num   = set.NumCells()
		perms = NewPermutes(dims)
	)
	vals := make([][]float64, dims)
	for d := range vals {
		vals[d] = randSlice(rng, conn.NumConnections())
	}
	var (
		x    = randSlice(rng, num)
		yRef = make([]float64, num)
	)
	for m := 0; m < num; m++ {
		for i := 0; i < num; i++ {
			tprod := 1.0
			for d := 0; d < dims; d++ {
				off := conn.GetOffset(set.Coord(m, d), set.Coord(i, d))
				if off == -1 {
					tprod = 0
					break
				}
				tprod *= vals[d][off]
			}
			yRef[m] += x[i] * tprod
		}
	}
	var (
		y  = make([]float64, num)
		w1 = make([]float64, num)
		w2 = make([]float64, num)
	)
	require.NoError(t, Global(perms, set, ds, conn, 1,
		[][][]float64{vals}, 1.0, x, 0.0, y, w1, w2))
	for i := range y {
		require.InDelta(t, yRef[i], y[i], 1.e-11, "dims=%d level=%d entry %d", dims, level, i)
	}
}

func TestGlobalKronLowerSets(t *testing.T) {
	for _, l := range []int{1, 2, 3, 4, 5, 6} {
		testGlobalKron(t, 2, l)
	}
	for _, l := range []int{1, 2, 3, 4} {
		testGlobalKron(t, 3, l)
		testGlobalKron(t, 4, l)
	}
	testGlobalKron(t, 5, 3)
}

func TestGlobalMatchesLocalBlockDegree(t *testing.T) {
	// property: the local and global engines agree on the same operator
	var (
		rng      = rand.New(rand.NewSource(11))
		dims     = 2
		n        = 2
		level    = 3
		set      = grid.NewLevelSet(dims, level)
		conn     = connect.New(level, connect.Volume)
		ds       = grid.NewDimensionSort(set)
		num      = set.NumCells()
		bs       = utils.Ipow(n, dims)
		numTerms = 2
		perms    = NewPermutes(dims)
	)
	vals := make([][][]float64, numTerms)
	for term := range vals {
		vals[term] = make([][]float64, dims)
		for d := range vals[term] {
			vals[term][d] = randSlice(rng, conn.NumConnections()*n*n)
		}
	}

	// assemble the identical operator in precomputed-iA local form: a block
	// (r, c) is active when the cells connect in every dimension
	var (
		pntr = make([]int, num+1)
		indx []int
		iA   []int
		vA   []float64
		base = make([]int, numTerms*dims)
	)
	for term := 0; term < numTerms; term++ {
		for d := 0; d < dims; d++ {
			base[term*dims+d] = len(vA)
			vA = append(vA, vals[term][d]...)
		}
	}
	for r := 0; r < num; r++ {
		pntr[r] = len(indx)
		for c := 0; c < num; c++ {
			offs := make([]int, dims)
			ok := true
			for d := 0; d < dims; d++ {
				offs[d] = conn.GetOffset(set.Coord(r, d), set.Coord(c, d))
				if offs[d] < 0 {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			indx = append(indx, c)
			for term := 0; term < numTerms; term++ {
				for d := 0; d < dims; d++ {
					iA = append(iA, base[term*dims+d]+offs[d]*n*n)
				}
			}
		}
	}
	pntr[num] = len(indx)
	kl, err := NewLocalKronmult(dims, n, num, num, numTerms, pntr, indx, iA, vA)
	require.NoError(t, err)

	var (
		x  = randSlice(rng, num*bs)
		y1 = make([]float64, num*bs)
		y2 = make([]float64, num*bs)
		w1 = make([]float64, num*bs)
		w2 = make([]float64, num*bs)
	)
	require.NoError(t, kl.Apply(1.0, x, 0.0, y1))
	require.NoError(t, Global(perms, set, ds, conn, n, vals, 1.0, x, 0.0, y2, w1, w2))
	for i := range y1 {
		require.InDelta(t, y1[i], y2[i], 1.e-11, "entry %d", i)
	}
}

func TestPermutes(t *testing.T) {
	for dims := 1; dims <= 6; dims++ {
		p := NewPermutes(dims)
		assert.Equal(t, 1<<(dims-1), p.NumPatterns())
		for m := 0; m < p.NumPatterns(); m++ {
			require.Len(t, p.Fill[m], dims)
			require.Len(t, p.Order[m], dims)
			assert.Equal(t, FillBoth, p.Fill[m][dims-1])
			// uppers must be swept before the both dimension, lowers after
			seenBoth := false
			for _, d := range p.Order[m] {
				switch p.Fill[m][d] {
				case FillUpper:
					assert.False(t, seenBoth)
				case FillBoth:
					seenBoth = true
				case FillLower:
					assert.True(t, seenBoth)
				}
			}
		}
	}
}

func TestDecompose(t *testing.T) {
	var (
		rng = BlockRange{RowStart: 0, RowEnd: 17, ColStart: 0, ColEnd: 13}
	)
	// budget fits nine blocks of workspace
	perBlock := 2 * int64(2) * int64(utils.Ipow(2, 3)) * 8
	tiles := Decompose(rng, 2, 2, 3, 8, 9*perBlock)
	covered := make(map[[2]int]int)
	for _, tile := range tiles {
		assert.LessOrEqual(t, int64(tile.Size())*perBlock, 9*perBlock)
		for i := tile.RowStart; i < tile.RowEnd; i++ {
			for j := tile.ColStart; j < tile.ColEnd; j++ {
				covered[[2]int{i, j}]++
			}
		}
	}
	assert.Equal(t, rng.Size(), len(covered))
	for _, count := range covered {
		assert.Equal(t, 1, count)
	}
	// generous budget: a single tile
	tiles = Decompose(rng, 2, 2, 3, 8, int64(rng.Size())*perBlock)
	assert.Len(t, tiles, 1)
	assert.Equal(t, rng, tiles[0])
}

func TestWorkspaceSizing(t *testing.T) {
	assert.Equal(t, int64(2*4*5*3*8), WorkspaceScalars(4, 5, 3, 2, 3))
	assert.Equal(t, int64(4*4*5*3), WorkspacePointers(4, 5, 3))
}
