// Package stats contains and computes the assessment statistics of
// sequential state-estimation (data assimilation) experiments.
package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fangqx/DAPPER/chrono"
	"github.com/fangqx/DAPPER/series"
)

// Adjust CompThreshold in Config to omit the heavy decompositions.
const defaultCompThreshold = 51

var (
	ErrObsAtInitial = errors.New("stats: no observation permitted at the initial time")
	ErrParadigm     = errors.New("stats: input does not match the configured estimation paradigm")
	ErrDims         = errors.New("stats: dimension mismatch")
)

// AssessmentError is a fatal per-step validation failure (weights not
// summing to one, non-finite inputs, failed decomposition).
type AssessmentError struct {
	K   int
	Msg string
}

func (e *AssessmentError) Error() string {
	return fmt.Sprintf("stats: assessment failed at k=%d: %s", e.K, e.Msg)
}

func afe(k int, format string, args ...interface{}) error {
	return &AssessmentError{K: k, Msg: fmt.Sprintf(format, args...)}
}

// Mode is the estimation paradigm, fixed for the lifetime of a Stats
// instance.
type Mode int

const (
	ModeEnsemble Mode = iota + 1
	ModeGaussian
)

// Estimate is the per-step input from the estimation method: exactly
// one of the two variants is populated, matching the configured Mode.
type Estimate struct {
	// Ensemble variant: E is N x m; W is nil (uniform), a single
	// element (broadcast), or length N.
	E *mat.Dense
	W []float64

	// Gaussian variant.
	Mu  *mat.VecDense
	Cov *mat.SymDense
}

// LivePlotter is notified with the same parameters as Assess; the
// engine never depends on it beyond the call.
type LivePlotter interface {
	Init(k int, est Estimate)
	Update(k, kObs int, tag series.Tag, est Estimate)
}

// Config carries the engine options read from the experiment setup.
type Config struct {
	N             int  // Ensemble size; 0 selects Gaussian mode.
	StoreU        bool // Retain the universal slot at every step.
	LivePlotting  bool
	CompThreshold float64 // Cost gate for the decompositions; 0 means 51.
}

type entryKind int

const (
	kindFAU entryKind = iota
	kindData
	kindScalar
)

type entry struct {
	name   string
	kind   entryKind
	fau    *series.FAU
	data   []float64
	scalar float64
}

// Stats allocates, records and time-averages the diagnostic series of
// one experiment run. One instance per run; calls are made by a single
// driver in strictly increasing k order.
type Stats struct {
	mode   Mode
	c      *chrono.Chrono
	m, p   int
	nEns   int // Ensemble size (ModeEnsemble only).
	storeU bool
	livePl bool
	thresh float64

	xx *mat.Dense // Truth trajectory, (K+1) x m. Read-only.
	yy *mat.Dense // Observations, (KObs+1) x p. Read-only.
	lp LivePlotter

	mu    *series.FAU // Mean
	vr    *series.FAU // Variances
	mad   *series.FAU // Mean abs deviations
	err   *series.FAU // Error (mu - truth)
	logpM *series.FAU // Marginal Gaussian log score
	skew  *series.FAU // Skewness
	kurt  *series.FAU // Excess kurtosis
	rmv   *series.FAU // Root-mean variance
	rmse  *series.FAU // Root-mean square error
	svals *series.FAU // Principal component (SVD) scores
	umisf *series.FAU // Error in principal directions
	w     *series.FAU // Importance weights (ensemble mode)
	rh    *series.FAU // Rank histogram (ensemble mode)

	trHK []float64 // Gain trace, per observation step, caller-set.
	infl []float64 // Inflation factor, per observation step, caller-set.

	registry []entry
}

// New builds the engine and allocates every diagnostic series over the
// full time grid. xx must be (K+1) x m, yy (KObs+1) x p; yy may be nil
// when the run is unobserved.
func New(cfg Config, c *chrono.Chrono, xx, yy *mat.Dense) (*Stats, error) {
	rows, m := xx.Dims()
	if rows != c.K+1 {
		return nil, fmt.Errorf("%w: truth has %d steps, grid has %d", ErrDims, rows, c.K+1)
	}
	p := 0
	if yy != nil {
		var orows int
		orows, p = yy.Dims()
		if orows != c.KObs+1 {
			return nil, fmt.Errorf("%w: obs has %d steps, grid has %d", ErrDims, orows, c.KObs+1)
		}
	}
	s := &Stats{
		c:      c,
		m:      m,
		p:      p,
		storeU: cfg.StoreU,
		livePl: cfg.LivePlotting,
		thresh: cfg.CompThreshold,
		xx:     xx,
		yy:     yy,
	}
	if s.thresh == 0 {
		s.thresh = defaultCompThreshold
	}

	fs := func(m int) *series.FAU { return series.NewFAU(c, m, cfg.StoreU) }
	s.mu = fs(m)
	s.vr = fs(m)
	s.mad = fs(m)
	s.err = fs(m)
	s.logpM = fs(1)
	s.skew = fs(1)
	s.kurt = fs(1)
	s.rmv = fs(1)
	s.rmse = fs(1)

	mNm := m
	if cfg.N > 0 {
		s.mode = ModeEnsemble
		s.nEns = cfg.N
		if cfg.N < m {
			mNm = cfg.N
		}
		s.w = fs(cfg.N)
		s.rh = fs(m)
	} else {
		s.mode = ModeGaussian
	}
	s.svals = fs(mNm)
	s.umisf = fs(mNm)

	s.trHK = series.NaNs(c.KObs + 1)
	s.infl = series.NaNs(c.KObs + 1)

	// Every diagnostic is declared in the registry exactly once, with
	// its kind; AverageInTime iterates the registry and nothing else.
	s.Register("mu", s.mu)
	s.Register("var", s.vr)
	s.Register("mad", s.mad)
	s.Register("err", s.err)
	s.Register("logp_m", s.logpM)
	s.Register("skew", s.skew)
	s.Register("kurt", s.kurt)
	s.Register("rmv", s.rmv)
	s.Register("rmse", s.rmse)
	s.Register("svals", s.svals)
	s.Register("umisf", s.umisf)
	if s.mode == ModeEnsemble {
		s.Register("w", s.w)
		s.Register("rh", s.rh)
	}
	s.RegisterData("trHK", s.trHK)
	s.RegisterData("infl", s.infl)
	return s, nil
}

// Mode returns the estimation paradigm fixed at construction.
func (s *Stats) Mode() Mode {
	return s.mode
}

// Chrono returns the time grid the series are indexed by.
func (s *Stats) Chrono() *chrono.Chrono {
	return s.c
}

// Register adds a FAU series to the averaging registry. The built-in
// diagnostics are registered by New; callers may attach further ones.
func (s *Stats) Register(name string, fs *series.FAU) {
	s.registry = append(s.registry, entry{name: name, kind: kindFAU, fau: fs})
}

// RegisterData adds a plain data series (one value per step of either
// grid) to the averaging registry.
func (s *Stats) RegisterData(name string, xx []float64) {
	s.registry = append(s.registry, entry{name: name, kind: kindData, data: xx})
}

// RegisterScalar adds a constant that passes through averaging
// unchanged (with no confidence attached).
func (s *Stats) RegisterScalar(name string, v float64) {
	s.registry = append(s.registry, entry{name: name, kind: kindScalar, scalar: v})
}

// SetLivePlotter installs the live-plot collaborator. It is only
// notified when Config.LivePlotting is set.
func (s *Stats) SetLivePlotter(lp LivePlotter) {
	s.lp = lp
}

// SetTrHK records the externally computed gain trace at kObs.
func (s *Stats) SetTrHK(kObs int, v float64) error {
	if kObs < 0 || kObs > s.c.KObs {
		return fmt.Errorf("%w: kObs=%d", series.ErrKey, kObs)
	}
	s.trHK[kObs] = v
	return nil
}

// SetInfl records the externally supplied inflation factor at kObs.
func (s *Stats) SetInfl(kObs int, v float64) error {
	if kObs < 0 || kObs > s.c.KObs {
		return fmt.Errorf("%w: kObs=%d", series.ErrKey, kObs)
	}
	s.infl[kObs] = v
	return nil
}

// Assess is the common interface for both the ensemble and the
// Gaussian assessment. kObs is chrono.NoObs at non-observation steps.
// A zero tag defaults to Universal away from observations and to
// Analysis|Universal at them.
func (s *Stats) Assess(k, kObs int, tag series.Tag, est Estimate) error {
	if k < 0 || k > s.c.K {
		return fmt.Errorf("%w: k=%d outside grid", series.ErrKey, k)
	}

	// Initial consistency checks. Observations at k=0 very easily
	// lead to bugs, and are not DA convention.
	if k == 0 {
		if kObs != chrono.NoObs {
			return ErrObsAtInitial
		}
		switch s.mode {
		case ModeEnsemble:
			if est.E == nil {
				return fmt.Errorf("%w: expected ensemble input, E is nil", ErrParadigm)
			}
			if est.Mu != nil {
				return fmt.Errorf("%w: expected ensemble input, mu is not nil", ErrParadigm)
			}
		case ModeGaussian:
			if est.E != nil {
				return fmt.Errorf("%w: expected mu/Cov input, E is not nil", ErrParadigm)
			}
			if est.Mu == nil {
				return fmt.Errorf("%w: expected mu/Cov input, mu is nil", ErrParadigm)
			}
		}
	}
	if kObs != chrono.NoObs && kObs != s.c.ObsIndex(k) {
		return fmt.Errorf("%w: kObs=%d does not belong to k=%d", series.ErrKey, kObs, k)
	}

	// Defaults for the tag. Away from observations only the
	// universal slot exists.
	if tag == 0 {
		if kObs == chrono.NoObs {
			tag = series.Universal
		} else {
			tag = series.Analysis | series.Universal
		}
	}
	if kObs == chrono.NoObs {
		tag = series.Universal
	}

	// Skip assessment entirely when nothing would retain the result.
	if !s.livePl && !s.storeU && kObs == chrono.NoObs {
		return nil
	}

	var err error
	switch s.mode {
	case ModeEnsemble:
		err = s.assessEns(k, kObs, tag, est.E, est.W)
	case ModeGaussian:
		err = s.assessExt(k, kObs, tag, est.Mu, est.Cov)
	}
	if err != nil {
		return err
	}

	if s.livePl && s.lp != nil {
		if k == 0 {
			s.lp.Init(k, est)
		} else if tag&series.Universal != 0 {
			s.lp.Update(k, kObs, tag, est)
		}
	}
	return nil
}

// truth returns the truth state at step k.
func (s *Stats) truth(k int) []float64 {
	x := make([]float64, s.m)
	mat.Row(x, k, s.xx)
	return x
}

// derivativeStats computes the stats that apply to both paradigms and
// derive from the series recorded moments before.
func (s *Stats) derivativeStats(k, kObs int, tag series.Tag, x []float64) error {
	mu, rerr := s.mu.Read(k, kObs, tag)
	if rerr != nil {
		return rerr
	}
	// err = mu - x
	ev := make([]float64, s.m)
	for i := range ev {
		ev[i] = mu[i] - x[i]
	}
	if werr := s.err.Write(k, kObs, tag, ev); werr != nil {
		return werr
	}

	vr, rerr := s.vr.Read(k, kObs, tag)
	if rerr != nil {
		return rerr
	}
	// rmv = sqrt(mean(var)),  rmse = sqrt(mean(err^2))
	var sv, se float64
	for i := 0; i < s.m; i++ {
		sv += vr[i]
		se += ev[i] * ev[i]
	}
	fm := float64(s.m)
	if werr := s.rmv.Write(k, kObs, tag, []float64{math.Sqrt(sv / fm)}); werr != nil {
		return werr
	}
	if werr := s.rmse.Write(k, kObs, tag, []float64{math.Sqrt(se / fm)}); werr != nil {
		return werr
	}
	return s.mgls(k, kObs, tag, ev, vr)
}

// mgls records the marginal Gaussian log score:
// logp_m = (sum(nmisf^2) + sum(log(var))) / m, nmisf = err / sqrt(var).
func (s *Stats) mgls(k, kObs int, tag series.Tag, ev, vr []float64) error {
	var ldet, nm2 float64
	for i := 0; i < s.m; i++ {
		ldet += math.Log(vr[i])
		nm2 += ev[i] * ev[i] / vr[i]
	}
	return s.logpM.Write(k, kObs, tag, []float64{(nm2 + ldet) / float64(s.m)})
}
