// Package chrono defines the discrete time grid of an experiment: K+1
// integration steps, of which every dkObs-th (except k=0) carries an
// observation.
package chrono

import (
	"errors"
	"fmt"
)

var ErrGrid = errors.New("chrono: invalid time grid")

// NoObs marks a step index that carries no observation.
const NoObs = -1

type Chrono struct {
	Dt     float64
	DkObs  int
	K      int
	BurnIn float64

	// Derived quantities.
	KObs  int       // Number of observation steps minus one.
	TT    []float64 // Step times, length K+1.
	KKObs []int     // kObs -> k, length KObs+1. KKObs[0] == DkObs.
}

// New builds the grid. K must be a positive multiple of dkObs so that the
// last step carries an observation; there is never an observation at k=0.
func New(dt float64, dkObs, k int, burnIn float64) (*Chrono, error) {
	if dt <= 0 || dkObs < 1 || k < dkObs || k%dkObs != 0 {
		return nil, fmt.Errorf("%w: dt=%v dkObs=%d K=%d", ErrGrid, dt, dkObs, k)
	}
	c := &Chrono{
		Dt:     dt,
		DkObs:  dkObs,
		K:      k,
		BurnIn: burnIn,
		KObs:   k/dkObs - 1,
	}
	c.TT = make([]float64, k+1)
	for i := range c.TT {
		c.TT[i] = float64(i) * dt
	}
	c.KKObs = make([]int, c.KObs+1)
	for j := range c.KKObs {
		c.KKObs[j] = (j + 1) * dkObs
	}
	return c, nil
}

// T returns the total duration of the experiment.
func (c *Chrono) T() float64 {
	return c.TT[c.K]
}

// ObsIndex returns the observation index of step k, or NoObs.
func (c *Chrono) ObsIndex(k int) int {
	if k > 0 && k%c.DkObs == 0 {
		return k/c.DkObs - 1
	}
	return NoObs
}

// MaskK selects the post-burn-in subset of the step grid.
func (c *Chrono) MaskK() []bool {
	mask := make([]bool, c.K+1)
	for i, t := range c.TT {
		mask[i] = t >= c.BurnIn
	}
	return mask
}

// MaskObs selects the post-burn-in subset of the observation grid.
func (c *Chrono) MaskObs() []bool {
	mask := make([]bool, c.KObs+1)
	for j, k := range c.KKObs {
		mask[j] = c.TT[k] >= c.BurnIn
	}
	return mask
}
