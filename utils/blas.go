package utils

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// Generic funnel over gonum blas32/blas64, so that the solver core can stay
// single-source across the two compiled precisions. Slices are passed
// through without copying; the type switch resolves at instantiation.

func vec64(x []float64) blas64.Vector { return blas64.Vector{N: len(x), Data: x, Inc: 1} }
func vec32(x []float32) blas32.Vector { return blas32.Vector{N: len(x), Data: x, Inc: 1} }

func Dot[P Scalar](x, y []P) P {
	switch xv := any(x).(type) {
	case []float64:
		return P(blas64.Dot(vec64(xv), vec64(any(y).([]float64))))
	default:
		return P(blas32.Dot(vec32(any(x).([]float32)), vec32(any(y).([]float32))))
	}
}

func Nrm2[P Scalar](x []P) P {
	switch xv := any(x).(type) {
	case []float64:
		return P(blas64.Nrm2(vec64(xv)))
	default:
		return P(blas32.Nrm2(vec32(any(x).([]float32))))
	}
}

func Axpy[P Scalar](alpha P, x, y []P) {
	switch xv := any(x).(type) {
	case []float64:
		blas64.Axpy(float64(alpha), vec64(xv), vec64(any(y).([]float64)))
	default:
		blas32.Axpy(float32(alpha), vec32(any(x).([]float32)), vec32(any(y).([]float32)))
	}
}

func Scal[P Scalar](alpha P, x []P) {
	switch xv := any(x).(type) {
	case []float64:
		blas64.Scal(float64(alpha), vec64(xv))
	default:
		blas32.Scal(float32(alpha), vec32(any(x).([]float32)))
	}
}

// Gemv computes y = beta*y + alpha*op(A)*x for a dense row-major A with
// nr rows, nc columns and the given stride.
func Gemv[P Scalar](trans bool, alpha P, a []P, nr, nc, stride int, x []P, beta P, y []P) {
	t := blas.NoTrans
	if trans {
		t = blas.Trans
	}
	switch av := any(a).(type) {
	case []float64:
		A := blas64.General{Rows: nr, Cols: nc, Stride: stride, Data: av}
		blas64.Gemv(t, float64(alpha), A, vec64(any(x).([]float64)), float64(beta),
			vec64(any(y).([]float64)))
	default:
		A := blas32.General{Rows: nr, Cols: nc, Stride: stride, Data: any(a).([]float32)}
		blas32.Gemv(t, float32(alpha), A, vec32(any(x).([]float32)), float32(beta),
			vec32(any(y).([]float32)))
	}
}

// Rot applies a plane rotation to the scalar pairs (x[i], y[i]).
func Rot[P Scalar](x, y []P, c, s P) {
	switch xv := any(x).(type) {
	case []float64:
		blas64.Rot(vec64(xv), vec64(any(y).([]float64)), float64(c), float64(s))
	default:
		xv32 := vec32(any(x).([]float32))
		blas32.Rot(xv32.N, xv32, vec32(any(y).([]float32)), float32(c), float32(s))
	}
}

// Rotg computes the Givens rotation annihilating b against a, returning the
// rotation (c, s) and the resulting r.
func Rotg[P Scalar](a, b P) (c, s, r P) {
	switch any(a).(type) {
	case float64:
		c64, s64, r64, _ := blas64.Rotg(float64(a), float64(b))
		return P(c64), P(s64), P(r64)
	default:
		c32, s32, r32, _ := blas32.Rotg(float32(a), float32(b))
		return P(c32), P(s32), P(r32)
	}
}

// Tpsv back-solves U*x = x for an upper triangular U of order n packed in
// column-major order, i.e. entry (i, j), i <= j, lives at i + j*(j+1)/2.
// Row-major blas sees that packing as the lower triangle of U transposed,
// so the call goes through as a transposed lower solve.
func Tpsv[P Scalar](n int, ap, x []P) {
	switch av := any(ap).(type) {
	case []float64:
		A := blas64.TriangularPacked{N: n, Uplo: blas.Lower, Diag: blas.NonUnit, Data: av}
		blas64.Tpsv(blas.Trans, A, vec64(any(x).([]float64)))
	default:
		A := blas32.TriangularPacked{N: n, Uplo: blas.Lower, Diag: blas.NonUnit, Data: any(ap).([]float32)}
		blas32.Tpsv(blas.Trans, A, vec32(any(x).([]float32)))
	}
}
