package stats

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fangqx/DAPPER/series"
	"github.com/fangqx/DAPPER/utils"
)

// UnbiasVar returns the multiplicative correction that makes a
// weighted sample variance unbiased: Neff/(Neff-1) with Neff = 1/sum(w^2),
// which reduces to N/(N-1) for uniform weights. With avoidPathological
// the correction is skipped (1 is returned) for near-degenerate weight
// distributions (Neff < 2), where the formula misbehaves.
func UnbiasVar(w []float64, avoidPathological bool) float64 {
	ww := 0.0
	for _, wi := range w {
		ww += wi * wi
	}
	nEff := 1.0 / ww
	if avoidPathological && nEff < 2 {
		return 1.0
	}
	return nEff / (nEff - 1.0)
}

// assessEns is the ensemble and particle-filter (weighted/importance)
// assessment.
func (s *Stats) assessEns(k, kObs int, tag series.Tag, E *mat.Dense, w []float64) error {
	if E == nil {
		return afe(k, "expected ensemble input, E is nil")
	}
	N, m := E.Dims()
	if m != s.m {
		return afe(k, "ensemble dimension %d, want %d", m, s.m)
	}
	if N != s.nEns {
		return afe(k, "ensemble size %d, want %d", N, s.nEns)
	}

	// Resolve weights: nil means uniform, a single entry broadcasts.
	switch {
	case w == nil:
		w = utils.Full(N, 1.0/float64(N))
	case len(w) == 1:
		if w[0] == 0 {
			return afe(k, "scalar weight is zero")
		}
		w = utils.Full(N, w[0])
	case len(w) != N:
		return afe(k, "got %d weights for %d members", len(w), N)
	}

	sum := 0.0
	for _, wn := range w {
		sum += wn
	}
	if math.Abs(sum-1) > 1e-5 {
		return afe(k, "weights did not sum to one")
	}
	if !utils.AllFinite(E.RawMatrix().Data) {
		return afe(k, "ensemble not finite")
	}

	x := s.truth(k)

	if err := s.w.Write(k, kObs, tag, w); err != nil {
		return err
	}

	// mu = w @ E
	mu := make([]float64, m)
	for i := 0; i < m; i++ {
		for n := 0; n < N; n++ {
			mu[i] += w[n] * E.At(n, i)
		}
	}
	if err := s.mu.Write(k, kObs, tag, mu); err != nil {
		return err
	}

	// A = E - mu
	A := mat.NewDense(N, m, nil)
	for n := 0; n < N; n++ {
		for i := 0; i < m; i++ {
			A.Set(n, i, E.At(n, i)-mu[i])
		}
	}

	// var = ub * (w @ A^2),  mad = w @ |A|
	ub := UnbiasVar(w, true)
	vr := make([]float64, m)
	mad := make([]float64, m)
	for i := 0; i < m; i++ {
		for n := 0; n < N; n++ {
			a := A.At(n, i)
			vr[i] += w[n] * a * a
			mad[i] += w[n] * math.Abs(a)
		}
		vr[i] *= ub
	}
	if err := s.vr.Write(k, kObs, tag, vr); err != nil {
		return err
	}
	if err := s.mad.Write(k, kObs, tag, mad); err != nil {
		return err
	}

	// Naive (biased) formulae for the higher moments, derived from the
	// empirical measure. Normalized by var; kurtosis is "excess" (0
	// for Gaussians).
	var skew, kurt float64
	for i := 0; i < m; i++ {
		var m3, m4 float64
		for n := 0; n < N; n++ {
			a := A.At(n, i)
			a2 := a * a
			m3 += w[n] * a2 * a
			m4 += w[n] * a2 * a2
		}
		skew += m3 / math.Pow(vr[i], 1.5)
		kurt += m4/(vr[i]*vr[i]) - 3
	}
	if err := s.skew.Write(k, kObs, tag, []float64{skew / float64(m)}); err != nil {
		return err
	}
	if err := s.kurt.Write(k, kObs, tag, []float64{kurt / float64(m)}); err != nil {
		return err
	}

	if err := s.derivativeStats(k, kObs, tag, x); err != nil {
		return err
	}

	// Only do the O(m^2)/O(m^3) work below small sizes.
	if math.Sqrt(float64(m*N)) <= s.thresh {
		ev, err := s.err.Read(k, kObs, tag)
		if err != nil {
			return err
		}
		var svals, umisf []float64
		if N <= m {
			svals, umisf, err = svdDirections(k, A, w, ub, ev)
		} else {
			svals, umisf, err = eigDirections(k, weightedCov(A, w), ub, ev)
		}
		if err != nil {
			return err
		}
		if err := s.svals.Write(k, kObs, tag, svals); err != nil {
			return err
		}
		if err := s.umisf.Write(k, kObs, tag, umisf); err != nil {
			return err
		}

		// For each state dim, the rank of the truth among the sorted
		// ensemble members: the index of the first entry equal to x[i]
		// in the sorted member+truth column, i.e. the count of members
		// strictly below the truth.
		rh := make([]float64, m)
		for i := 0; i < m; i++ {
			rank := 0
			for n := 0; n < N; n++ {
				if E.At(n, i) < x[i] {
					rank++
				}
			}
			rh[i] = float64(rank)
		}
		if err := s.rh.Write(k, kObs, tag, rh); err != nil {
			return err
		}
	}
	return nil
}

// weightedCov forms P = A^T diag(w) A.
func weightedCov(A *mat.Dense, w []float64) *mat.SymDense {
	N, m := A.Dims()
	P := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			var pij float64
			for n := 0; n < N; n++ {
				pij += w[n] * A.At(n, i) * A.At(n, j)
			}
			P.SetSym(i, j, pij)
		}
	}
	return P
}

// svdDirections decomposes the weighted anomalies: the singular values
// of diag(sqrt(w)) A, rescaled by sqrt(ub) so their squares are
// unbiased, and the truth misfit projected onto the right singular
// vectors. Values come out in descending order.
func svdDirections(k int, A *mat.Dense, w []float64, ub float64, ev []float64) (svals, umisf []float64, err error) {
	N, m := A.Dims()
	B := mat.NewDense(N, m, nil)
	for n := 0; n < N; n++ {
		sw := math.Sqrt(w[n])
		for i := 0; i < m; i++ {
			B.Set(n, i, sw*A.At(n, i))
		}
	}
	var svd mat.SVD
	if ok := svd.Factorize(B, mat.SVDThin); !ok {
		return nil, nil, afe(k, "SVD of weighted anomalies failed")
	}
	svals = svd.Values(nil)
	sub := math.Sqrt(ub)
	for i := range svals {
		svals[i] *= sub
	}
	var V mat.Dense
	svd.VTo(&V)
	// umisf = V^T @ err
	umisf = make([]float64, len(svals))
	for i := range umisf {
		for j := 0; j < m; j++ {
			umisf[i] += V.At(j, i) * ev[j]
		}
	}
	return svals, umisf, nil
}

// eigDirections decomposes the covariance directly: eigenvalues scaled
// by ub, clipped at zero, reversed to descending order; the truth
// misfit projected onto the matching eigenvectors.
func eigDirections(k int, P *mat.SymDense, ub float64, ev []float64) (svals, umisf []float64, err error) {
	m := P.SymmetricDim()
	var eig mat.EigenSym
	if ok := eig.Factorize(P, true); !ok {
		return nil, nil, afe(k, "eigendecomposition of covariance failed")
	}
	vals := eig.Values(nil) // ascending
	var U mat.Dense
	eig.VectorsTo(&U)
	svals = make([]float64, m)
	umisf = make([]float64, m)
	for i := 0; i < m; i++ {
		s2 := ub * vals[m-1-i]
		if s2 < 0 {
			s2 = 0
		}
		svals[i] = math.Sqrt(s2)
		for j := 0; j < m; j++ {
			umisf[i] += U.At(j, m-1-i) * ev[j]
		}
	}
	return svals, umisf, nil
}
