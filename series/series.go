// Package series provides the time-indexed stores for diagnostic
// quantities and the mean-with-confidence reductions applied to them.
package series

import (
	"errors"
	"fmt"
	"math"

	"github.com/fangqx/DAPPER/chrono"
)

var (
	ErrShape        = errors.New("series: value shape mismatch")
	ErrKey          = errors.New("series: invalid step key")
	ErrGridMismatch = errors.New("series: length matches neither time grid")
)

// ValWithConf is a point estimate together with a confidence measure
// (the standard error of the mean, for time averages).
type ValWithConf struct {
	Val  float64
	Conf float64
}

func (v ValWithConf) String() string {
	return fmt.Sprintf("%.4g ±%.4g", v.Val, v.Conf)
}

// MeanWithConf reduces xx to its mean and standard error, treating the
// entries as i.i.d. samples. NaN entries (unwritten slots) are skipped.
func MeanWithConf(xx []float64) ValWithConf {
	n := 0
	sum := 0.0
	for _, x := range xx {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return ValWithConf{Val: math.NaN(), Conf: math.NaN()}
	}
	mean := sum / float64(n)
	if n < 2 {
		return ValWithConf{Val: mean, Conf: 0}
	}
	ss := 0.0
	for _, x := range xx {
		if math.IsNaN(x) {
			continue
		}
		d := x - mean
		ss += d * d
	}
	// conf = sample std dev / sqrt(n)
	return ValWithConf{
		Val:  mean,
		Conf: math.Sqrt(ss/float64(n-1)) / math.Sqrt(float64(n)),
	}
}

// MeanWithConfMasked reduces the subset of xx selected by mask.
func MeanWithConfMasked(xx []float64, mask []bool) ValWithConf {
	sub := make([]float64, 0, len(xx))
	for i, x := range xx {
		if mask[i] {
			sub = append(sub, x)
		}
	}
	return MeanWithConf(sub)
}

// AverageData reduces a plain data series over the post-burn-in subset
// of whichever grid its length matches.
func AverageData(c *chrono.Chrono, xx []float64) (ValWithConf, error) {
	switch len(xx) {
	case c.KObs + 1:
		return MeanWithConfMasked(xx, c.MaskObs()), nil
	case c.K + 1:
		return MeanWithConfMasked(xx, c.MaskK()), nil
	}
	return ValWithConf{}, fmt.Errorf("%w: len=%d", ErrGridMismatch, len(xx))
}

// NaNs returns a fresh NaN-filled slice, marking every slot unwritten.
func NaNs(n int) []float64 {
	xx := make([]float64, n)
	for i := range xx {
		xx[i] = math.NaN()
	}
	return xx
}
