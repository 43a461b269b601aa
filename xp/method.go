package xp

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/fangqx/DAPPER/chrono"
	"github.com/fangqx/DAPPER/model"
	"github.com/fangqx/DAPPER/stats"
)

// Method supplies the per-step state estimate being assessed. The
// returned Estimate must stay in one paradigm for the whole run.
type Method interface {
	// Init prepares the method for a run.
	Init(rng *rand.Rand, mdl model.Model, c *chrono.Chrono) error

	// Estimate returns the estimate after step k. y is the current
	// observation at observation steps, nil otherwise.
	Estimate(k, kObs int, y []float64) (stats.Estimate, error)
}

var (
	climatology *Climatology
	_           Method = climatology // Check that Climatology respects the Method interface.
)

// Climatology is the no-assimilation baseline: its estimate is the
// model's invariant distribution, sampled once from a long free run,
// and never updated by observations.
type Climatology struct {
	// N > 0 samples an ensemble; N == 0 summarizes the free run as a
	// Gaussian (mean and covariance).
	N int

	// SpinUp and SampleGap control the free run: SpinUp steps are
	// discarded, then one state is kept every SampleGap steps.
	SpinUp    int
	SampleGap int

	est stats.Estimate
}

func (cl *Climatology) Init(rng *rand.Rand, mdl model.Model, c *chrono.Chrono) error {
	spinUp, gap := cl.SpinUp, cl.SampleGap
	if spinUp == 0 {
		spinUp = 1000
	}
	if gap == 0 {
		gap = 10
	}
	nSamples := cl.N
	if nSamples == 0 {
		nSamples = 5 * mdl.Dim()
	}

	m := mdl.Dim()
	x := make([]float64, m)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	for k := 0; k < spinUp; k++ {
		x = mdl.Step(x, 0, c.Dt)
	}
	E := mat.NewDense(nSamples, m, nil)
	for n := 0; n < nSamples; n++ {
		for k := 0; k < gap; k++ {
			x = mdl.Step(x, 0, c.Dt)
		}
		E.SetRow(n, x)
	}

	if cl.N > 0 {
		cl.est = stats.Estimate{E: E}
		return nil
	}

	// Gaussian summary of the free run samples.
	mu := mat.NewVecDense(m, nil)
	for i := 0; i < m; i++ {
		var s float64
		for n := 0; n < nSamples; n++ {
			s += E.At(n, i)
		}
		mu.SetVec(i, s/float64(nSamples))
	}
	P := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			var s float64
			for n := 0; n < nSamples; n++ {
				s += (E.At(n, i) - mu.AtVec(i)) * (E.At(n, j) - mu.AtVec(j))
			}
			P.SetSym(i, j, s/float64(nSamples-1))
		}
	}
	cl.est = stats.Estimate{Mu: mu, Cov: P}
	return nil
}

func (cl *Climatology) Estimate(k, kObs int, y []float64) (stats.Estimate, error) {
	return cl.est, nil
}
