package kronmult

// Fill restricts a directional sweep to a triangle of the 1D connectivity,
// measured on cell linear indices.
type Fill uint8

const (
	// FillLower keeps entries with column cell <= row cell (diagonal included).
	FillLower Fill = iota
	// FillUpper keeps entries with column cell > row cell.
	FillUpper
	// FillBoth keeps every connection.
	FillBoth
)

// Permutes is the ordered list of directional sweep patterns that covers the
// interaction of a Kronecker product over a lower (downward closed) index
// set. Dimensions 0..d-2 are split into the strict upper and the
// diagonal-inclusive lower triangle, one pattern per sign choice, and the
// last dimension carries the full matrix, giving 2^(d-1) patterns. Within a
// pattern the upper-fill dimensions sweep first and the lower-fill
// dimensions last, which keeps every intermediate of the sweep chain inside
// the lower set.
type Permutes struct {
	NumDims int
	Fill    [][]Fill // per pattern, per dimension
	Order   [][]int  // per pattern, dimension execution order
}

func NewPermutes(numDims int) (p Permutes) {
	p.NumDims = numDims
	num := 1 << (numDims - 1)
	p.Fill = make([][]Fill, num)
	p.Order = make([][]int, num)
	for m := 0; m < num; m++ {
		fill := make([]Fill, numDims)
		var upper, lower []int
		for d := 0; d < numDims-1; d++ {
			if m&(1<<d) != 0 {
				fill[d] = FillLower
				lower = append(lower, d)
			} else {
				fill[d] = FillUpper
				upper = append(upper, d)
			}
		}
		fill[numDims-1] = FillBoth
		order := make([]int, 0, numDims)
		order = append(order, upper...)
		order = append(order, numDims-1)
		order = append(order, lower...)
		p.Fill[m] = fill
		p.Order[m] = order
	}
	return
}

// NumPatterns is the sweep-pattern count, 2^(d-1).
func (p Permutes) NumPatterns() int { return len(p.Fill) }

func (f Fill) keeps(row, col int) bool {
	switch f {
	case FillLower:
		return col <= row
	case FillUpper:
		return col > row
	default:
		return true
	}
}
