package kronmult

import (
	"math"

	"github.com/statmech/kronwave/utils"
)

// WorkspaceScalars is the scratch requirement of a batched dispatch over a
// block range: two buffers holding one staged tensor per (block, term).
func WorkspaceScalars(numRows, numCols, numTerms, n, dims int) int64 {
	return 2 * int64(numRows) * int64(numCols) * int64(numTerms) *
		int64(utils.Ipow(n, dims))
}

// WorkspacePointers is the pointer-list requirement of a batched dispatch:
// input, work, output and operator lists per (block, term).
func WorkspacePointers(numRows, numCols, numTerms int) int64 {
	return 4 * int64(numRows) * int64(numCols) * int64(numTerms)
}

// Decompose splits a block range into square tiles so that each tile's
// scalar workspace fits in budgetBytes, with scalarSize the byte width of
// the precision in use. Tiling walks rows up then columns up; edge tiles
// are truncated to the original range.
func Decompose(rng BlockRange, numTerms, n, dims, scalarSize int, budgetBytes int64) (tiles []BlockRange) {
	var (
		perBlock = 2 * int64(numTerms) * int64(utils.Ipow(n, dims)) * int64(scalarSize)
		total    = int64(rng.Size()) * perBlock
	)
	if total <= budgetBytes || rng.Size() == 0 {
		return []BlockRange{rng}
	}
	var (
		maxBlocks = budgetBytes / perBlock
		side      = int(math.Floor(math.Sqrt(float64(maxBlocks))))
	)
	if side < 1 {
		side = 1
	}
	for i := rng.RowStart; i < rng.RowEnd; i += side {
		rowEnd := i + side
		if rowEnd > rng.RowEnd {
			rowEnd = rng.RowEnd
		}
		for j := rng.ColStart; j < rng.ColEnd; j += side {
			colEnd := j + side
			if colEnd > rng.ColEnd {
				colEnd = rng.ColEnd
			}
			tiles = append(tiles, BlockRange{
				RowStart: i, RowEnd: rowEnd,
				ColStart: j, ColEnd: colEnd,
			})
		}
	}
	return
}
