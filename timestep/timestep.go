package timestep

import (
	"fmt"

	"github.com/statmech/kronwave/operators"
	"github.com/statmech/kronwave/solvers"
	"github.com/statmech/kronwave/utils"
)

// SolverKind selects the iterative solver behind implicit steps.
type SolverKind string

const (
	SolverGMRES    SolverKind = "gmres"
	SolverBiCGStab SolverKind = "bicgstab"
)

// Stepper owns the state-vector workspace of the time advance and borrows
// the operator set. Source, when set, adds the forcing f(t) to the right
// hand side of every stage.
type Stepper[P utils.Scalar] struct {
	Ops       *operators.KronOps[P]
	Dt        P
	Solver    SolverKind
	Restart   int
	MaxIter   int
	Tolerance P
	Source    func(time P, f []P)

	r1, r2 []P
}

func NewStepper[P utils.Scalar](ops *operators.KronOps[P], dt P) *Stepper[P] {
	return &Stepper[P]{
		Ops: ops, Dt: dt,
		Solver:  SolverGMRES,
		Restart: solvers.Unset, MaxIter: solvers.Unset,
		r1: make([]P, ops.Size()),
		r2: make([]P, ops.Size()),
	}
}

func (s *Stepper[P]) rhsAt(time P, flag operators.IMEXFlag, x, y []P) error {
	if err := s.Ops.Apply(flag, 1, x, 0, y); err != nil {
		return err
	}
	if s.Source != nil {
		s.Source(time, y[:s.Ops.Size()])
	}
	return nil
}

// ExplicitRK3 advances x by one step of the three-stage strong stability
// preserving Runge-Kutta scheme.
func (s *Stepper[P]) ExplicitRK3(time P, x []P) error {
	var (
		dt = s.Dt
		n  = s.Ops.Size()
	)
	// stage 1: r1 = x + dt*L(x)
	if err := s.rhsAt(time, operators.IMEXUnspecified, x, s.r1); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		s.r1[i] = x[i] + dt*s.r1[i]
	}
	// stage 2: r2 = 3/4 x + 1/4 (r1 + dt*L(r1))
	if err := s.rhsAt(time+dt, operators.IMEXUnspecified, s.r1, s.r2); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		s.r2[i] = P(0.75)*x[i] + P(0.25)*(s.r1[i]+dt*s.r2[i])
	}
	// stage 3: x = 1/3 x + 2/3 (r2 + dt*L(r2))
	if err := s.rhsAt(time+dt/2, operators.IMEXUnspecified, s.r2, s.r1); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		x[i] = x[i]/3 + P(2.)/3*(s.r2[i]+dt*s.r1[i])
	}
	return nil
}

// ImplicitEuler solves (I - dt*L) x' = x + dt*f(t+dt) for the next iterate.
func (s *Stepper[P]) ImplicitEuler(time P, x []P) (info solvers.Info[P], err error) {
	return s.implicit(time, operators.IMEXUnspecified, x)
}

// IMEX advances the explicit term group with forward Euler, then solves
// the implicit group backward in time over the same step.
func (s *Stepper[P]) IMEX(time P, x []P) (info solvers.Info[P], err error) {
	var (
		dt = s.Dt
		n  = s.Ops.Size()
	)
	if err = s.rhsAt(time, operators.IMEXExplicit, x, s.r1); err != nil {
		return
	}
	for i := 0; i < n; i++ {
		x[i] += dt * s.r1[i]
	}
	return s.implicit(time, operators.IMEXImplicit, x)
}

func (s *Stepper[P]) implicit(time P, flag operators.IMEXFlag, x []P) (info solvers.Info[P], err error) {
	var (
		dt = s.Dt
		n  = s.Ops.Size()
	)
	copy(s.r1, x[:n])
	if s.Source != nil {
		for i := range s.r2 {
			s.r2[i] = 0
		}
		s.Source(time+dt, s.r2)
		for i := 0; i < n; i++ {
			s.r1[i] += dt * s.r2[i]
		}
	}
	switch s.Solver {
	case SolverBiCGStab:
		info, err = solvers.BiCGStabEuler(dt, flag, s.Ops, x[:n], s.r1, s.MaxIter, s.Tolerance)
	case SolverGMRES, "":
		info, err = solvers.GMRESEuler(dt, flag, s.Ops, x[:n], s.r1, s.Restart, s.MaxIter, s.Tolerance)
	default:
		err = fmt.Errorf("unknown solver %q", s.Solver)
	}
	return
}
