// Package model defines the state-evolution provider consumed by the
// experiment driver, and ships the Lorenz-96 reference dynamics.
package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/fangqx/DAPPER/utils"
)

// Model evolves state vectors and exposes the Jacobian of the step map
// (the integrated tangent linear model).
type Model interface {
	// Dimension of the state vector.
	Dim() int

	// Step advances x by one interval dt starting at time t.
	Step(x []float64, t, dt float64) []float64

	// Jacobian of the step map at x, i.e. the integral of the
	// tangent linear model over dt.
	Jacobian(x []float64, t, dt float64) *mat.Dense
}

// RK4 integrates dx/dt = f(t, x) one step with the classical
// fourth-order Runge-Kutta scheme.
func RK4(f func(t float64, x []float64) []float64, x []float64, t, dt float64) []float64 {
	m := len(x)
	k1 := f(t, x)
	k2 := f(t+dt/2, axpy(x, dt/2, k1))
	k3 := f(t+dt/2, axpy(x, dt/2, k2))
	k4 := f(t+dt, axpy(x, dt, k3))
	out := make([]float64, m)
	for i := 0; i < m; i++ {
		out[i] = x[i] + dt/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return out
}

// axpy returns x + a*y without touching x.
func axpy(x []float64, a float64, y []float64) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		out[i] = x[i] + a*y[i]
	}
	return out
}

// IntegrateTLM integrates dU/dt = F U from U = I over dt with RK4,
// holding F (the tangent linear model) frozen. This approximates
// expm(F dt), the Jacobian of the step map.
func IntegrateTLM(F *mat.Dense, dt float64) *mat.Dense {
	m, _ := F.Dims()
	U := utils.Eye(m)
	deriv := func(t float64, u []float64) []float64 {
		var du mat.Dense
		du.Mul(F, mat.NewDense(m, m, u))
		out := make([]float64, m*m)
		copy(out, du.RawMatrix().Data)
		return out
	}
	flat := make([]float64, m*m)
	copy(flat, U.RawMatrix().Data)
	flat = RK4(deriv, flat, 0, dt)
	return mat.NewDense(m, m, flat)
}
