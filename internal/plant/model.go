// Package plant describes the linear time-invariant process under control:
//
//	dx/dt = A·x + B·u
//	y_k   = C_k·x
//
// with a four-dimensional state, one effective actuation channel and two
// measured outputs.
package plant

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/san-kum/loopsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

const (
	StateDim   = 4
	NumOutputs = 2
)

// Model is immutable once built; all methods are safe for concurrent use.
type Model struct {
	a *mat.Dense
	b *mat.VecDense
	c [NumOutputs]*mat.VecDense
}

// New builds a model from the state matrix, the effective input vector and
// the coefficients of both output functionals. Inputs are copied.
func New(a [][]float64, b []float64, c [NumOutputs][]float64) (*Model, error) {
	if len(a) != StateDim {
		return nil, fmt.Errorf("%w: A has %d rows, want %d", dynamo.ErrDimensionMismatch, len(a), StateDim)
	}
	data := make([]float64, 0, StateDim*StateDim)
	for i, row := range a {
		if len(row) != StateDim {
			return nil, fmt.Errorf("%w: A row %d has %d columns, want %d", dynamo.ErrDimensionMismatch, i, len(row), StateDim)
		}
		data = append(data, row...)
	}
	if len(b) != StateDim {
		return nil, fmt.Errorf("%w: B has %d entries, want %d", dynamo.ErrDimensionMismatch, len(b), StateDim)
	}

	m := &Model{
		a: mat.NewDense(StateDim, StateDim, data),
		b: mat.NewVecDense(StateDim, append([]float64(nil), b...)),
	}
	for k, ck := range c {
		if len(ck) != StateDim {
			return nil, fmt.Errorf("%w: output %d has %d coefficients, want %d", dynamo.ErrDimensionMismatch, k+1, len(ck), StateDim)
		}
		m.c[k] = mat.NewVecDense(StateDim, append([]float64(nil), ck...))
	}
	return m, nil
}

// ReduceInput extracts one column of a full input matrix as the effective
// input vector. The remaining columns are discarded.
func ReduceInput(full [][]float64, column int) ([]float64, error) {
	if len(full) != StateDim {
		return nil, fmt.Errorf("%w: input matrix has %d rows, want %d", dynamo.ErrDimensionMismatch, len(full), StateDim)
	}
	out := make([]float64, StateDim)
	for i, row := range full {
		if column < 0 || column >= len(row) {
			return nil, fmt.Errorf("%w: input column %d out of range for row %d of width %d", dynamo.ErrDimensionMismatch, column, i, len(row))
		}
		out[i] = row[column]
	}
	return out, nil
}

// Derivative returns A·x + B·u.
func (m *Model) Derivative(x [StateDim]float64, u float64) [StateDim]float64 {
	var dx mat.VecDense
	dx.MulVec(m.a, mat.NewVecDense(StateDim, x[:]))
	dx.AddScaledVec(&dx, u, m.b)

	var out [StateDim]float64
	for i := range out {
		out[i] = dx.AtVec(i)
	}
	return out
}

// Output evaluates the k-th measured channel C_k·x.
func (m *Model) Output(k int, x [StateDim]float64) float64 {
	return mat.Dot(m.c[k], mat.NewVecDense(StateDim, x[:]))
}

// OutputRate is the analytic derivative of output k given the state
// derivative dx, i.e. C_k·dx.
func (m *Model) OutputRate(k int, dx [StateDim]float64) float64 {
	return mat.Dot(m.c[k], mat.NewVecDense(StateDim, dx[:]))
}

// Poles returns the eigenvalues of A.
func (m *Model) Poles() ([]complex128, error) {
	var eig mat.Eigen
	if ok := eig.Factorize(m.a, mat.EigenNone); !ok {
		return nil, errors.New("plant: eigen decomposition did not converge")
	}
	return eig.Values(nil), nil
}

// Stable reports whether every pole of A lies in the open left half-plane.
func (m *Model) Stable() (bool, error) {
	poles, err := m.Poles()
	if err != nil {
		return false, err
	}
	for _, p := range poles {
		if real(p) >= 0 || cmplx.IsNaN(p) {
			return false, nil
		}
	}
	return true, nil
}

// SteadyState returns the equilibrium state for a constant actuation u,
// the solution of A·x = -B·u.
func (m *Model) SteadyState(u float64) ([StateDim]float64, error) {
	var rhs, x mat.VecDense
	rhs.ScaleVec(-u, m.b)
	if err := x.SolveVec(m.a, &rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return [StateDim]float64{}, fmt.Errorf("plant: no equilibrium: %w", err)
		}
	}

	var out [StateDim]float64
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, nil
}

// DCGain is the steady-state value of output k per unit of actuation.
func (m *Model) DCGain(k int) (float64, error) {
	x, err := m.SteadyState(1)
	if err != nil {
		return 0, err
	}
	return m.Output(k, x), nil
}
