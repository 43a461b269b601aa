package model

import (
	"gonum.org/v1/gonum/mat"
)

var (
	lorenz96 *Lorenz96
	_        Model = lorenz96 // Check that Lorenz96 respects the Model interface.
)

// Lorenz96 is the "Lorenz-95" (or 96) model:
// dx_i/dt = (x_{i+1} - x_{i-2}) x_{i-1} - x_i + F, indices cyclic.
type Lorenz96 struct {
	m     int
	force float64

	// The model is unstable (blows up) if there are large peaks, as
	// may be occasioned by the analysis update, especially with
	// partial obs. PreventBlowUp crops such amplitudes before
	// stepping.
	PreventBlowUp bool
}

// NewLorenz96 builds an m-variable model with the conventional forcing
// F = 8.
func NewLorenz96(m int) *Lorenz96 {
	return &Lorenz96{m: m, force: 8.0}
}

// NewLorenz96Forced builds an m-variable model with forcing F.
func NewLorenz96Forced(m int, force float64) *Lorenz96 {
	return &Lorenz96{m: m, force: force}
}

func (l *Lorenz96) Dim() int {
	return l.m
}

// dxdt = (roll(x,-1) - roll(x,2)) * roll(x,1) - x + F
func (l *Lorenz96) dxdt(x []float64) []float64 {
	m := l.m
	out := make([]float64, m)
	for i := 0; i < m; i++ {
		out[i] = (x[mod(i+1, m)]-x[mod(i-2, m)])*x[mod(i-1, m)] - x[i] + l.force
	}
	return out
}

func (l *Lorenz96) Step(x []float64, t, dt float64) []float64 {
	if l.PreventBlowUp {
		cropped := make([]float64, l.m)
		for i, xi := range x {
			if xi > 30 || xi < -30 {
				xi *= 0.1
			}
			cropped[i] = xi
		}
		x = cropped
	}
	return RK4(func(t float64, x []float64) []float64 { return l.dxdt(x) }, x, t, dt)
}

// TLM is the tangent linear model at x.
func (l *Lorenz96) TLM(x []float64) *mat.Dense {
	m := l.m
	F := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		F.Set(i, i, -1.0)
		F.Set(i, mod(i-2, m), -x[mod(i-1, m)])
		F.Set(i, mod(i+1, m), x[mod(i-1, m)])
		F.Set(i, mod(i-1, m), x[mod(i+1, m)]-x[mod(i-2, m)])
	}
	return F
}

// Jacobian of Step: the TLM integrated over dt.
func (l *Lorenz96) Jacobian(x []float64, t, dt float64) *mat.Dense {
	return IntegrateTLM(l.TLM(x), dt)
}

func mod(i, m int) int {
	return ((i % m) + m) % m
}
