package solvers

import (
	"fmt"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/statmech/kronwave/utils"
)

// PoissonBC selects the boundary treatment of the 1D Poisson sub-solver.
type PoissonBC uint8

const (
	PoissonDirichlet PoissonBC = iota
	PoissonPeriodic
)

// legendreWeights returns the npts Gauss-Legendre nodes and weights on
// [-1, 1].
func legendreWeights(npts int) (x, w []float64) {
	x = make([]float64, npts)
	w = make([]float64, npts)
	quad.Legendre{}.FixedLocations(x, w, -1, 1)
	return
}

// pttrf factors the symmetric positive definite tridiagonal matrix with
// diagonal d and off-diagonal e into L*D*L^T, in place.
func pttrf[P utils.Scalar](d, e []P) error {
	n := len(d)
	for i := 0; i < n-1; i++ {
		if d[i] <= 0 {
			return fmt.Errorf("tridiagonal matrix is not positive definite at row %d", i)
		}
		ei := e[i]
		e[i] = ei / d[i]
		d[i+1] -= e[i] * ei
	}
	if n > 0 && d[n-1] <= 0 {
		return fmt.Errorf("tridiagonal matrix is not positive definite at row %d", n-1)
	}
	return nil
}

// pttrs back-solves against the pttrf factorization.
func pttrs[P utils.Scalar](d, e, b []P) {
	n := len(d)
	for i := 1; i < n; i++ {
		b[i] -= e[i-1] * b[i-1]
	}
	for i := 0; i < n; i++ {
		b[i] /= d[i]
	}
	for i := n - 2; i >= 0; i-- {
		b[i] -= e[i] * b[i+1]
	}
}

// PoissonSetup factors the interior-node stiffness matrix of the 1D
// Poisson problem on numElements linear finite elements. With a single
// element there is nothing to factor; PoissonSolve takes the analytic
// shortcut.
func PoissonSetup[P utils.Scalar](numElements int, xMin, xMax P) (diag, offDiag []P, err error) {
	if numElements == 1 {
		return nil, nil, nil
	}
	var (
		dx       = (xMax - xMin) / P(numElements)
		numNodes = numElements - 1
	)
	diag = make([]P, numNodes)
	offDiag = make([]P, numNodes-1)
	for i := range diag {
		diag[i] = 2 / dx
	}
	for i := range offDiag {
		offDiag[i] = -1 / dx
	}
	err = pttrf(diag, offDiag)
	return
}

// PoissonSolve solves -phi_xx = source with linear finite elements and the
// boundary values phi(xMin) = phiMin, phi(xMax) = phiMax, returning phi and
// E = -phi_x at the Gauss-Legendre nodes of every element. Under periodic
// boundary conditions the source is centred (mean subtracted) before the
// solve. The source is sampled at the same per-element Gauss-Legendre
// nodes, degree+1 per element.
func PoissonSolve[P utils.Scalar](source, diag, offDiag []P, phi, e []P,
	degree, numElements int, xMin, xMax, phiMin, phiMax P, bc PoissonBC) error {
	var (
		dx       = (xMax - xMin) / P(numElements)
		pts, wts = legendreWeights(degree + 1)
		np       = degree + 1
	)
	if len(phi) < numElements*np || len(e) < numElements*np {
		return fmt.Errorf("output size %d, %d below the %d element nodes", len(phi), len(e), numElements*np)
	}

	// a single element reduces to the line through the boundary values
	if numElements == 1 {
		dg := (phiMax - phiMin) / (xMax - xMin)
		for k := 0; k < np; k++ {
			xk := xMin + P(0.5)*dx*(1+P(pts[k]))
			phi[k] = phiMin + dg*(xk-xMin)
			e[k] = -dg
		}
		return nil
	}

	numNodes := numElements - 1
	if len(source) < numElements*np {
		return fmt.Errorf("source size %d below the %d element nodes", len(source), numElements*np)
	}
	if len(diag) != numNodes || len(offDiag) != numNodes-1 {
		return fmt.Errorf("factorization shape %d, %d does not match %d interior nodes",
			len(diag), len(offDiag), numNodes)
	}

	// average the source under periodic conditions
	var aveSource P
	if bc == PoissonPeriodic {
		for i := 0; i < numElements; i++ {
			for q := 0; q < np; q++ {
				aveSource += P(0.5) * dx * P(wts[q]) * source[i*np+q]
			}
		}
		aveSource /= xMax - xMin
	}

	// assemble the hat-function load vector
	b := make([]P, numNodes)
	for i := 0; i < numNodes; i++ {
		for q := 0; q < np; q++ {
			b[i] += P(0.25) * dx * P(wts[q]) *
				(source[i*np+q]*(1+P(pts[q])) +
					source[(i+1)*np+q]*(1-P(pts[q])) -
					2*aveSource)
		}
	}

	pttrs(diag, offDiag, b)

	dg := (phiMax - phiMin) / (xMax - xMin)

	// first element
	for k := 0; k < np; k++ {
		xk := xMin + P(0.5)*dx*(1+P(pts[k]))
		gk := phiMin + dg*(xk-xMin)
		phi[k] = P(0.5)*b[0]*(1+P(pts[k])) + gk
		e[k] = -b[0]/dx - dg
	}
	// interior elements
	for i := 1; i < numElements-1; i++ {
		for q := 0; q < np; q++ {
			var (
				k  = i*np + q
				xk = xMin + P(i)*dx + P(0.5)*dx*(1+P(pts[q]))
				gk = phiMin + dg*(xk-xMin)
			)
			phi[k] = P(0.5)*(b[i-1]*(1-P(pts[q]))+b[i]*(1+P(pts[q]))) + gk
			e[k] = -(b[i]-b[i-1])/dx - dg
		}
	}
	// last element
	i := numElements - 1
	for q := 0; q < np; q++ {
		var (
			k  = i*np + q
			xk = xMin + P(i)*dx + P(0.5)*dx*(1+P(pts[q]))
			gk = phiMin + dg*(xk-xMin)
		)
		phi[k] = P(0.5)*b[i-1]*(1-P(pts[q])) + gk
		e[k] = b[i-1]/dx - dg
	}
	return nil
}
