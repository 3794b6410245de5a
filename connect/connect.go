package connect

import (
	"fmt"
	"math/bits"
	"sort"
)

// Hierarchy selects which 1D adjacency relation is materialized.
type Hierarchy uint8

const (
	// Volume connects cells whose supports overlap, touching included.
	Volume Hierarchy = iota
	// Support connects cells whose support interiors overlap, so touching
	// neighbours at the same or finer level are excluded.
	Support
)

// CellIndex returns the linear index of the 1D hierarchical cell at the
// given level and offset: level 0 holds the single cell 0, level l >= 1
// holds 2^(l-1) cells starting at linear index 2^(l-1).
func CellIndex(level, offset int) int {
	if level == 0 {
		return 0
	}
	return (1 << (level - 1)) + offset
}

// CellLevel inverts CellIndex.
func CellLevel(index int) (level, offset int) {
	if index == 0 {
		return 0, 0
	}
	level = bits.Len(uint(index))
	offset = index - (1 << (level - 1))
	return
}

// CellSupport returns the dyadic support [a, b] of a cell as integer
// bounds over a 2^denomLevel subdivision of [0, 1]. Cells 0 and 1 span the
// whole domain.
func CellSupport(index, denomLevel int) (a, b int) {
	level, offset := CellLevel(index)
	if level <= 1 {
		return 0, 1 << denomLevel
	}
	h := 1 << (denomLevel - level + 1)
	return offset * h, (offset + 1) * h
}

// NumCells returns the cell count of the hierarchy up to maxLevel.
func NumCells(maxLevel int) int {
	if maxLevel == 0 {
		return 1
	}
	return 1 << maxLevel
}

// Connect1D holds the CSR-like pattern of the 1D cell-to-cell adjacency for
// a fixed max level. The position of column c within row r is the canonical
// storage offset for per-(term, dim) coefficient arrays.
type Connect1D struct {
	maxLevel int
	hier     Hierarchy
	pntr     []int
	indx     []int
}

func New(maxLevel int, hier Hierarchy) (conn *Connect1D) {
	var (
		num = NumCells(maxLevel)
	)
	conn = &Connect1D{
		maxLevel: maxLevel,
		hier:     hier,
		pntr:     make([]int, num+1),
	}
	for r := 0; r < num; r++ {
		ra, rb := CellSupport(r, maxLevel)
		conn.pntr[r] = len(conn.indx)
		for c := 0; c < num; c++ {
			ca, cb := CellSupport(c, maxLevel)
			if conn.connected(ra, rb, ca, cb) {
				conn.indx = append(conn.indx, c)
			}
		}
	}
	conn.pntr[num] = len(conn.indx)
	return
}

func (conn *Connect1D) connected(ra, rb, ca, cb int) bool {
	if conn.hier == Support {
		return ra < cb && ca < rb
	}
	return ra <= cb && ca <= rb
}

func (conn *Connect1D) MaxLevel() int       { return conn.maxLevel }
func (conn *Connect1D) NumCells() int       { return len(conn.pntr) - 1 }
func (conn *Connect1D) NumConnections() int { return len(conn.indx) }

// RowBegin and RowEnd bound the offsets of row r; Get resolves an offset to
// its column cell.
func (conn *Connect1D) RowBegin(r int) int { return conn.pntr[r] }
func (conn *Connect1D) RowEnd(r int) int   { return conn.pntr[r+1] }
func (conn *Connect1D) Get(j int) int      { return conn.indx[j] }

// GetOffset returns the storage offset of the (row, col) connection, or -1
// when the two cells are not connected.
func (conn *Connect1D) GetOffset(row, col int) int {
	var (
		b, e = conn.pntr[row], conn.pntr[row+1]
	)
	j := b + sort.SearchInts(conn.indx[b:e], col)
	if j < e && conn.indx[j] == col {
		return j
	}
	return -1
}

func (conn *Connect1D) String() string {
	return fmt.Sprintf("connect_1d{levels: %d, cells: %d, connections: %d}",
		conn.maxLevel, conn.NumCells(), conn.NumConnections())
}
