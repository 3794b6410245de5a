package solvers

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"

	"github.com/statmech/kronwave/utils"
)

// ApplyJacobi divides each entry by (1 - dt*pc[i]), the diagonal
// preconditioner of the implicit-Euler system.
func ApplyJacobi[P utils.Scalar](pc []P, dt P, x []P) {
	for i := range pc {
		x[i] /= 1 - dt*pc[i]
	}
}

// Jacobi binds a diagonal and a time step into a Preconditioner.
func Jacobi[P utils.Scalar](pc []P, dt P) Preconditioner[P] {
	return func(x []P) {
		ApplyJacobi(pc, dt, x)
	}
}

// DensePreconditioner carries the LU factors of an explicit preconditioner
// matrix; applying it back-solves against the factorization. Used where the
// full system matrix is affordable, chiefly in solver tests.
type DensePreconditioner struct {
	lu     blas64.General
	pivots []int
}

func NewDensePreconditioner(m *mat.Dense) (pc *DensePreconditioner, err error) {
	var (
		nr, nc = m.Dims()
	)
	if nr != nc {
		return nil, fmt.Errorf("preconditioner matrix is %d x %d, must be square", nr, nc)
	}
	pc = &DensePreconditioner{
		lu: blas64.General{
			Rows: nr, Cols: nc, Stride: nc,
			Data: append([]float64{}, m.RawMatrix().Data...),
		},
		pivots: make([]int, nr),
	}
	if ok := lapack64.Getrf(pc.lu, pc.pivots); !ok {
		return nil, fmt.Errorf("preconditioner matrix is singular")
	}
	return
}

func (pc *DensePreconditioner) Apply(b []float64) {
	rhs := blas64.General{Rows: pc.lu.Rows, Cols: 1, Stride: 1, Data: b}
	lapack64.Getrs(blas.NoTrans, pc.lu, rhs, pc.pivots)
}
