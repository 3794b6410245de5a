package grid

import (
	"testing"

	"github.com/statmech/kronwave/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowerSetContainsAncestors(t *testing.T) {
	var (
		set = NewLevelSet(3, 4)
	)
	require.Greater(t, set.NumCells(), 0)
	seen := make(map[[MaxNumDims]int]bool)
	for i := 0; i < set.NumCells(); i++ {
		var key [MaxNumDims]int
		copy(key[:], set.Cell(i))
		seen[key] = true
	}
	for i := 0; i < set.NumCells(); i++ {
		cell := set.Cell(i)
		for d := 0; d < set.NumDims; d++ {
			if cell[d] == 0 {
				continue
			}
			var pred [MaxNumDims]int
			copy(pred[:], cell)
			pred[d]--
			require.True(t, seen[pred], "componentwise predecessor of %v missing", cell)
		}
	}
}

func TestLowerSetLexOrderAndDistinct(t *testing.T) {
	var (
		set = NewLevelSet(2, 3)
	)
	for i := 1; i < set.NumCells(); i++ {
		a, b := set.Cell(i-1), set.Cell(i)
		less := false
		for d := 0; d < 2; d++ {
			if a[d] != b[d] {
				less = a[d] < b[d]
				break
			}
		}
		require.True(t, less, "rows must be strictly increasing: %v then %v", a, b)
	}
}

func TestLevelSetMatchesPredicate(t *testing.T) {
	var (
		L   = 3
		set = NewLevelSet(2, L)
	)
	for i := 0; i < set.NumCells(); i++ {
		cell := set.Cell(i)
		assert.LessOrEqual(t, utils.Ilog2(cell[0])+utils.Ilog2(cell[1]), L)
	}
	// 1D sanity: level sum <= L in one dimension is just cells 0..2^L-1
	set1 := NewLevelSet(1, L)
	assert.Equal(t, 1<<L, set1.NumCells())
}

func TestFullSetSize(t *testing.T) {
	set := NewFullSet([]int{2, 2})
	// 4 cells per dimension at level 2
	assert.Equal(t, 16, set.NumCells())
}

func TestDimensionSortStrips(t *testing.T) {
	var (
		set = NewLevelSet(2, 2)
		ds  = NewDimensionSort(set)
	)
	for d := 0; d < 2; d++ {
		covered := 0
		for s := 0; s < ds.NumStrips(d); s++ {
			b, e := ds.StripBegin(d, s), ds.StripEnd(d, s)
			require.Less(t, b, e)
			covered += e - b
			for j := b + 1; j < e; j++ {
				// within a strip the k-coordinate ascends and the other
				// coordinates match
				assert.Greater(t, ds.Coord(d, j), ds.Coord(d, j-1))
				assert.True(t, sameStrip(set, ds.Map(d, j-1), ds.Map(d, j), d))
			}
			if e < set.NumCells() {
				assert.False(t, sameStrip(set, ds.Map(d, e-1), ds.Map(d, e), d))
			}
		}
		assert.Equal(t, set.NumCells(), covered)
	}
}
