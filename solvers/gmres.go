package solvers

import (
	"fmt"
	"math"

	"github.com/statmech/kronwave/utils"
)

// Unset is the sentinel for integer solver parameters: the engine picks
// its default.
const Unset = -1

// Operator is a matrix-free linear operator: y = beta*y + alpha*A*x.
type Operator[P utils.Scalar] func(alpha P, x []P, beta P, y []P)

// Preconditioner applies M^{-1} in place.
type Preconditioner[P utils.Scalar] func(x []P)

// Identity is the no-op preconditioner.
func Identity[P utils.Scalar](x []P) {}

// Info reports the outcome of an iterative solve. Non-convergence is not
// an error: the caller inspects the residual.
type Info[P utils.Scalar] struct {
	Residual   P
	Iterations int
}

// DefaultRestarts picks the inner iteration count before a restart: at
// least 10 and at most 200 (never more than the problem size), capped so
// the Krylov basis stays under 512 MiB.
func DefaultRestarts[P utils.Scalar](numCols int) int {
	var (
		scalarSize = 8
	)
	if _, ok := any(P(0)).(float32); ok {
		scalarSize = 4
	}
	var (
		colMB   = float64(numCols) * float64(scalarSize) / (1 << 20)
		minimum = min(10, numCols)
		maximum = min(200, numCols)
	)
	r := int(512. / colMB)
	if r < minimum {
		return minimum
	}
	if r > maximum {
		return maximum
	}
	return r
}

func posFromIndices(i, j int) int { return i + j*(j+1)/2 }

// GMRES solves A*x = b with the restarted, preconditioned GMRES of Saad,
// using modified Gram-Schmidt and Givens rotations on the Hessenberg
// column, updating x in place. The apply and preconditioner are abstract;
// the Kronecker operator set plugs in matrix-free.
func GMRES[P utils.Scalar](apply Operator[P], x, b []P, precondition Preconditioner[P],
	restart, maxOuter int, tolerance P) (info Info[P], err error) {
	if tolerance == 0 {
		tolerance = utils.DefaultTolerance[P]()
	}
	if tolerance < utils.Eps[P]() {
		return info, fmt.Errorf("tolerance %v is below machine epsilon %v", tolerance, utils.Eps[P]())
	}
	n := len(b)
	if len(x) != n {
		return info, fmt.Errorf("iterate size %d does not match right hand side %d", len(x), n)
	}
	if restart == Unset {
		restart = DefaultRestarts[P](n)
	}
	if restart <= 0 || restart > n {
		return info, fmt.Errorf("number of inner iterations %d must be in 1..%d", restart, n)
	}
	if maxOuter == Unset {
		maxOuter = n
	}
	if maxOuter <= 0 {
		return info, fmt.Errorf("number of outer iterations %d must be positive", maxOuter)
	}

	var (
		basis      = make([]P, (restart+1)*n) // krylov vectors as rows
		krylovProj = make([]P, restart*(restart+1)/2)
		sines      = make([]P, restart+1)
		cosines    = make([]P, restart+1)
		krylovSol  = make([]P, restart+1)

		totalIterations int
		outerIterations int
		innerIterations int

		innerRes P
		outerRes = tolerance + 1
	)
	for outerRes > tolerance && outerIterations < maxOuter {
		scaled := basis[:n]
		copy(scaled, b)
		apply(-1, x, 1, scaled)
		precondition(scaled)
		totalIterations++

		innerRes = utils.Nrm2(scaled)
		utils.Scal(1/innerRes, scaled)
		krylovSol[0] = innerRes

		innerIterations = 0
		for innerRes > tolerance && innerIterations < restart {
			var (
				j        = innerIterations
				tmp      = basis[j*n : (j+1)*n]
				newBasis = basis[(j+1)*n : (j+2)*n]
			)
			apply(1, tmp, 0, newBasis)
			precondition(newBasis)
			totalIterations++

			// modified Gram-Schmidt against the basis built so far
			coeffs := krylovProj[posFromIndices(0, j) : posFromIndices(j, j)+1]
			for k := 0; k <= j; k++ {
				vk := basis[k*n : (k+1)*n]
				coeffs[k] = utils.Dot(vk, newBasis)
				utils.Axpy(-coeffs[k], vk, newBasis)
			}
			nrm := utils.Nrm2(newBasis)
			utils.Scal(1/nrm, newBasis)

			for k := 0; k < j; k++ {
				utils.Rot(coeffs[k:k+1], coeffs[k+1:k+2], cosines[k], sines[k])
			}
			c, s, r := utils.Rotg(coeffs[j], nrm)
			cosines[j], sines[j] = c, s
			coeffs[j] = r

			innerRes = P(math.Abs(float64(sines[j] * krylovSol[j])))
			if innerRes > tolerance && j < restart {
				krylovSol[j+1] = 0
				utils.Rot(krylovSol[j:j+1], krylovSol[j+1:j+2], c, s)
			}
			innerIterations++
		}
		if innerIterations > 0 {
			var (
				j   = innerIterations
				sol = krylovSol[:j]
			)
			utils.Tpsv(j, krylovProj[:posFromIndices(j-1, j-1)+1], sol)
			utils.Gemv(true, 1, basis, j, n, n, sol, 1, x)
		}
		outerIterations++
		outerRes = innerRes
	}
	return Info[P]{Residual: outerRes, Iterations: totalIterations}, nil
}
