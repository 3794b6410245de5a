package solvers

import (
	"fmt"

	"github.com/statmech/kronwave/utils"
)

// BiCGStab solves A*x = b with the preconditioned BiConjugate Gradient
// Stabilized method, following the algorithm on p. 27 of the SIAM
// Templates book. x is updated in place. A breakdown (rho == 0 or
// omega == 0) is returned as an error; the caller may retry with a
// different initial guess or fall back to GMRES.
func BiCGStab[P utils.Scalar](apply Operator[P], x, b []P, precondition Preconditioner[P],
	maxIter int, tol P) (info Info[P], err error) {
	if tol == 0 {
		tol = utils.DefaultTolerance[P]()
	}
	if tol < utils.Eps[P]() {
		return info, fmt.Errorf("tolerance %v is below machine epsilon %v", tol, utils.Eps[P]())
	}
	n := len(b)
	if len(x) != n {
		return info, fmt.Errorf("iterate size %d does not match right hand side %d", len(x), n)
	}
	if maxIter == Unset {
		maxIter = n
	}
	if maxIter <= 0 {
		return info, fmt.Errorf("number of iterations %d must be positive", maxIter)
	}

	var (
		p    = make([]P, n)
		phat = make([]P, n)
		s    = make([]P, n)
		shat = make([]P, n)
		t    = make([]P, n)
		v    = make([]P, n)
		r    = make([]P, n)
	)
	normb := utils.Nrm2(b)
	copy(r, b)
	apply(-1, x, 1, r)

	rtilde := make([]P, n)
	copy(rtilde, r)

	if normb == 0 {
		normb = 1
	}
	resid := utils.Nrm2(r) / normb
	if resid <= tol {
		return Info[P]{Residual: resid, Iterations: 0}, nil
	}

	var rho2, alpha, omega P
	for i := 1; i <= maxIter; i++ {
		rho1 := utils.Dot(rtilde, r)
		if rho1 == 0 {
			return info, fmt.Errorf("BiCGSTAB method failed, rho == 0 at iteration %d", i)
		}
		if i == 1 {
			copy(p, r)
		} else {
			beta := (rho1 / rho2) * (alpha / omega)
			copy(phat, p)
			utils.Axpy(-omega, v, phat)
			copy(p, r)
			utils.Axpy(beta, phat, p)
		}
		copy(phat, p)
		precondition(phat)
		apply(1, phat, 0, v)
		alpha = rho1 / utils.Dot(rtilde, v)
		copy(s, r)
		utils.Axpy(-alpha, v, s)
		resid = utils.Nrm2(s) / normb
		if resid < tol {
			utils.Axpy(alpha, phat, x)
			return Info[P]{Residual: resid, Iterations: i}, nil
		}
		copy(shat, s)
		precondition(shat)
		apply(1, shat, 0, t)
		omega = utils.Dot(t, s) / utils.Dot(t, t)
		utils.Axpy(alpha, phat, x)
		utils.Axpy(omega, shat, x)
		copy(r, s)
		utils.Axpy(-omega, t, r)

		rho2 = rho1
		resid = utils.Nrm2(r) / normb
		if resid < tol {
			return Info[P]{Residual: resid, Iterations: i}, nil
		}
		if omega == 0 {
			return info, fmt.Errorf("BiCGSTAB method failed, omega == 0 at iteration %d", i)
		}
	}
	return Info[P]{Residual: resid, Iterations: maxIter}, nil
}
