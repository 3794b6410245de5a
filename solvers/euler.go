package solvers

import (
	"github.com/statmech/kronwave/operators"
	"github.com/statmech/kronwave/utils"
)

// eulerOperator builds the matrix-free apply of (I - dt*K_flag):
// y = beta*y + alpha*(x - dt*K*x).
func eulerOperator[P utils.Scalar](dt P, flag operators.IMEXFlag,
	ops *operators.KronOps[P]) Operator[P] {
	return func(alpha P, x []P, beta P, y []P) {
		if err := ops.Apply(flag, -dt*alpha, x, beta, y); err != nil {
			panic(err)
		}
		utils.Axpy(alpha, x, y[:len(x)])
	}
}

// GMRESEuler advances one implicit Euler step: it solves
// (I - dt*K_flag) x = b with GMRES, preconditioned by the Jacobi diagonal
// the operator set reports.
func GMRESEuler[P utils.Scalar](dt P, flag operators.IMEXFlag, ops *operators.KronOps[P],
	x, b []P, restart, maxIter int, tolerance P) (Info[P], error) {
	pc := ops.Diagonal(flag)
	return GMRES(eulerOperator(dt, flag, ops), x, b, Jacobi(pc, dt), restart, maxIter, tolerance)
}

// BiCGStabEuler is the BiCGSTAB variant of the implicit Euler step.
func BiCGStabEuler[P utils.Scalar](dt P, flag operators.IMEXFlag, ops *operators.KronOps[P],
	x, b []P, maxIter int, tolerance P) (Info[P], error) {
	pc := ops.Diagonal(flag)
	return BiCGStab(eulerOperator(dt, flag, ops), x, b, Jacobi(pc, dt), maxIter, tolerance)
}
