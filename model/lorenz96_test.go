package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRK4Linear(t *testing.T) {
	// dx/dt = -x from x=1: after dt the solution is exp(-dt).
	f := func(t float64, x []float64) []float64 {
		return []float64{-x[0]}
	}
	x := []float64{1}
	dt := 0.01
	for i := 0; i < 100; i++ {
		x = RK4(f, x, float64(i)*dt, dt)
	}
	assert.InDelta(t, math.Exp(-1), x[0], 1e-8)
}

func TestLorenz96FixedPoint(t *testing.T) {
	// x = F*ones is a fixed point of the dynamics.
	l := NewLorenz96(8)
	x := make([]float64, 8)
	for i := range x {
		x[i] = 8.0
	}
	next := l.Step(x, 0, 0.05)
	for i := range next {
		assert.InDelta(t, 8.0, next[i], 1e-12)
	}
}

func TestLorenz96StepLeavesInputUntouched(t *testing.T) {
	l := NewLorenz96(6)
	x := []float64{1, 2, 3, 4, 5, 6}
	orig := append([]float64(nil), x...)
	_ = l.Step(x, 0, 0.05)
	assert.Equal(t, orig, x)
}

func TestTLMMatchesFiniteDifferences(t *testing.T) {
	l := NewLorenz96(6)
	x := []float64{1.2, -0.3, 2.1, 0.7, -1.5, 0.9}
	F := l.TLM(x)

	eps := 1e-6
	for j := 0; j < 6; j++ {
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[j] += eps
		xm[j] -= eps
		fp := l.dxdt(xp)
		fm := l.dxdt(xm)
		for i := 0; i < 6; i++ {
			assert.InDelta(t, (fp[i]-fm[i])/(2*eps), F.At(i, j), 1e-6)
		}
	}
}

func TestJacobianMatchesStepMap(t *testing.T) {
	l := NewLorenz96(6)
	x := []float64{1.2, -0.3, 2.1, 0.7, -1.5, 0.9}
	dt := 0.005 // small enough for the frozen-TLM approximation
	J := l.Jacobian(x, 0, dt)

	eps := 1e-5
	base := l.Step(x, 0, dt)
	for j := 0; j < 6; j++ {
		xp := append([]float64(nil), x...)
		xp[j] += eps
		stepped := l.Step(xp, 0, dt)
		for i := 0; i < 6; i++ {
			assert.InDelta(t, (stepped[i]-base[i])/eps, J.At(i, j), 1e-3)
		}
	}
}

func TestPreventBlowUpCropsPeaks(t *testing.T) {
	l := NewLorenz96(4)
	l.PreventBlowUp = true
	x := []float64{0, -40, 0, 40}
	next := l.Step(x, 0, 0.01)
	for _, v := range next {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		assert.Less(t, math.Abs(v), 40.0)
	}
}
