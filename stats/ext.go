package stats

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fangqx/DAPPER/series"
	"github.com/fangqx/DAPPER/utils"
)

// madToStd is the MAD/STD ratio for Gaussians, sqrt(2/pi).
var madToStd = math.Sqrt(2 / math.Pi)

// assessExt is the Kalman filter (Gaussian) assessment.
func (s *Stats) assessExt(k, kObs int, tag series.Tag, mu *mat.VecDense, P *mat.SymDense) error {
	if mu == nil {
		return afe(k, "expected mu/Cov input, mu is nil")
	}
	if P == nil {
		return afe(k, "expected mu/Cov input, Cov is nil")
	}
	if mu.Len() != s.m {
		return afe(k, "mean dimension %d, want %d", mu.Len(), s.m)
	}
	if P.SymmetricDim() != s.m {
		return afe(k, "covariance dimension %d, want %d", P.SymmetricDim(), s.m)
	}
	if !utils.AllFinite(mu.RawVector().Data) || !utils.AllFinite(P.RawSymmetric().Data) {
		return afe(k, "estimates not finite")
	}

	x := s.truth(k)

	muv := make([]float64, s.m)
	copy(muv, mu.RawVector().Data)
	if err := s.mu.Write(k, kObs, tag, muv); err != nil {
		return err
	}

	// var = diag(P),  mad = sqrt(var) * sqrt(2/pi)
	vr := make([]float64, s.m)
	mad := make([]float64, s.m)
	for i := 0; i < s.m; i++ {
		vr[i] = P.At(i, i)
		mad[i] = math.Sqrt(vr[i]) * madToStd
	}
	if err := s.vr.Write(k, kObs, tag, vr); err != nil {
		return err
	}
	if err := s.mad.Write(k, kObs, tag, mad); err != nil {
		return err
	}

	if err := s.derivativeStats(k, kObs, tag, x); err != nil {
		return err
	}

	if float64(s.m) <= s.thresh {
		ev, err := s.err.Read(k, kObs, tag)
		if err != nil {
			return err
		}
		svals, umisf, err := eigDirections(k, P, 1.0, ev)
		if err != nil {
			return err
		}
		if err := s.svals.Write(k, kObs, tag, svals); err != nil {
			return err
		}
		if err := s.umisf.Write(k, kObs, tag, umisf); err != nil {
			return err
		}
	}
	return nil
}
