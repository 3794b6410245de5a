package grid

import (
	"fmt"
	"sort"

	"github.com/statmech/kronwave/utils"
)

// MaxNumDims bounds the dimensionality of the tensor hypercube.
const MaxNumDims = 6

// IndexSet stores a sparse set of d-dimensional multi-indexes as a packed
// row-major array: row = cell, column = the 1D cell linear index in that
// dimension. GenerateLowerSet and its helpers produce distinct rows in
// lexicographic order; NewIndexSet keeps the caller's rows as given,
// without sorting or checking them.
type IndexSet struct {
	NumDims int
	indexes []int
}

func NewIndexSet(numDims int, indexes []int) (s *IndexSet) {
	if numDims < 1 || numDims > MaxNumDims {
		panic(fmt.Errorf("invalid number of dimensions: %d", numDims))
	}
	if len(indexes)%numDims != 0 {
		panic(fmt.Errorf("packed index data of length %d does not divide into %d dimensions",
			len(indexes), numDims))
	}
	return &IndexSet{NumDims: numDims, indexes: indexes}
}

func (s *IndexSet) NumCells() int { return len(s.indexes) / s.NumDims }

// Cell returns the row view of cell i; the slice aliases the packed storage.
func (s *IndexSet) Cell(i int) []int {
	return s.indexes[i*s.NumDims : (i+1)*s.NumDims]
}

func (s *IndexSet) Coord(i, dim int) int { return s.indexes[i*s.NumDims+dim] }

// MaxIndex returns the largest 1D cell index present in any dimension.
func (s *IndexSet) MaxIndex() (m int) {
	for _, v := range s.indexes {
		if v > m {
			m = v
		}
	}
	return
}

// GenerateLowerSet builds the set of all multi-indexes satisfying a
// downward-closed predicate by BFS from the origin through component
// increments. The predicate must be monotone: inside(i) and j <= i
// componentwise implies inside(j). The result therefore contains the
// hierarchical ancestors of every included cell.
func GenerateLowerSet(numDims int, inside func(index []int) bool) (s *IndexSet) {
	var (
		seen  = make(map[[MaxNumDims]int]bool)
		queue [][MaxNumDims]int
		rows  [][MaxNumDims]int
		zero  [MaxNumDims]int
	)
	if !inside(zero[:numDims]) {
		return NewIndexSet(numDims, nil)
	}
	seen[zero] = true
	queue = append(queue, zero)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		rows = append(rows, cur)
		for d := 0; d < numDims; d++ {
			next := cur
			next[d]++
			if !seen[next] && inside(next[:numDims]) {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		for d := 0; d < numDims; d++ {
			if rows[i][d] != rows[j][d] {
				return rows[i][d] < rows[j][d]
			}
		}
		return false
	})
	packed := make([]int, 0, len(rows)*numDims)
	for _, r := range rows {
		packed = append(packed, r[:numDims]...)
	}
	return NewIndexSet(numDims, packed)
}

// NewLevelSet builds the standard sparse grid: all multi-indexes whose 1D
// levels sum to at most maxSumLevel.
func NewLevelSet(numDims, maxSumLevel int) *IndexSet {
	return GenerateLowerSet(numDims, func(index []int) bool {
		L := 0
		for _, ix := range index {
			L += utils.Ilog2(ix)
		}
		return L <= maxSumLevel
	})
}

// NewFullSet builds the full tensor grid with the given per-dimension max
// levels (the use_full_grid option).
func NewFullSet(levels []int) *IndexSet {
	numDims := len(levels)
	return GenerateLowerSet(numDims, func(index []int) bool {
		for d, ix := range index {
			if utils.Ilog2(ix) > levels[d] {
				return false
			}
		}
		return true
	})
}
