package stats

import (
	"math"

	"github.com/fangqx/DAPPER/series"
)

// Avrgs maps a diagnostic name (with slot suffix where applicable) to
// its time-averaged value and confidence.
type Avrgs map[string]series.ValWithConf

// AverageInTime reduces every registered series to value+confidence
// pairs. FAU series contribute one pair per populated slot, suffixed
// "_f"/"_a"/"_u"; plain data series reduce over whichever grid their
// length matches; scalars pass through. Series whose shape does not
// support reduction are omitted, not an error.
func (s *Stats) AverageInTime() Avrgs {
	avrg := Avrgs{}
	for _, e := range s.registry {
		switch e.kind {
		case kindFAU:
			if !e.fau.Reducible() {
				continue
			}
			for sub, v := range e.fau.Average() {
				avrg[e.name+"_"+sub] = v
			}
		case kindData:
			if len(e.data) != s.c.KObs+1 && len(e.data) != s.c.K+1 {
				continue
			}
			v, err := series.AverageData(s.c, e.data)
			if err != nil {
				continue
			}
			avrg[e.name] = v
		case kindScalar:
			avrg[e.name] = series.ValWithConf{Val: e.scalar, Conf: math.NaN()}
		}
	}
	return avrg
}

// AverageEachField reduces repeated trials: ss[i][j] is the averaged
// output of trial j of experiment variant i. Per field, the combined
// value is the mean of the per-trial values and the combined confidence
// is the mean of the per-trial confidences divided by sqrt(nTrials).
//
// NB: this is a rudimentary averaging of confidence intervals that
// ignores the between-trial variance of the value itself; check it
// against the spread of the per-trial values when tight bounds matter.
func AverageEachField(ss [][]Avrgs) []Avrgs {
	out := make([]Avrgs, len(ss))
	for i, row := range ss {
		out[i] = Avrgs{}
		if len(row) == 0 {
			continue
		}
		n := float64(len(row))
		for key := range row[0] {
			var vsum, csum float64
			for _, trial := range row {
				vsum += trial[key].Val
				csum += trial[key].Conf
			}
			out[i][key] = series.ValWithConf{
				Val:  vsum / n,
				Conf: csum / n / math.Sqrt(n),
			}
		}
	}
	return out
}
