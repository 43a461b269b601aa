package series

import (
	"fmt"
	"strings"

	"github.com/fangqx/DAPPER/chrono"
)

// Tag selects which of the forecast/analysis/universal sub-slots of an
// observation-time entry a write (or read) applies to.
type Tag uint8

const (
	Forecast Tag = 1 << iota
	Analysis
	Universal
)

func (t Tag) String() string {
	var b strings.Builder
	if t&Forecast != 0 {
		b.WriteByte('f')
	}
	if t&Analysis != 0 {
		b.WriteByte('a')
	}
	if t&Universal != 0 {
		b.WriteByte('u')
	}
	return b.String()
}

// FAU holds one diagnostic quantity of width m over the experiment's
// time grids: forecast and analysis slots on the observation grid, and
// a universal slot on the full step grid. When storeU is off the
// universal slot degrades to a single rolling entry (kept for live
// plotting), and is excluded from time averages.
type FAU struct {
	c      *chrono.Chrono
	m      int
	storeU bool

	f [][]float64 // (KObs+1) x m
	a [][]float64 // (KObs+1) x m
	u [][]float64 // (K+1) x m, or 1 x m when !storeU
}

func NewFAU(c *chrono.Chrono, m int, storeU bool) *FAU {
	nu := 1
	if storeU {
		nu = c.K + 1
	}
	s := &FAU{
		c:      c,
		m:      m,
		storeU: storeU,
		f:      make([][]float64, c.KObs+1),
		a:      make([][]float64, c.KObs+1),
		u:      make([][]float64, nu),
	}
	for i := range s.f {
		s.f[i] = NaNs(m)
		s.a[i] = NaNs(m)
	}
	for i := range s.u {
		s.u[i] = NaNs(m)
	}
	return s
}

// Width returns the per-step dimension m.
func (s *FAU) Width() int {
	return s.m
}

func (s *FAU) slot(k, kObs int, tag Tag) ([]float64, error) {
	switch tag {
	case Forecast:
		if kObs == chrono.NoObs || kObs < 0 || kObs > s.c.KObs {
			return nil, fmt.Errorf("%w: forecast slot needs kObs, got %d", ErrKey, kObs)
		}
		return s.f[kObs], nil
	case Analysis:
		if kObs == chrono.NoObs || kObs < 0 || kObs > s.c.KObs {
			return nil, fmt.Errorf("%w: analysis slot needs kObs, got %d", ErrKey, kObs)
		}
		return s.a[kObs], nil
	case Universal:
		if k < 0 || k > s.c.K {
			return nil, fmt.Errorf("%w: k=%d outside grid", ErrKey, k)
		}
		if !s.storeU {
			return s.u[0], nil
		}
		return s.u[k], nil
	}
	return nil, fmt.Errorf("%w: tag %q is not a single slot", ErrKey, tag)
}

// Write records val under (k, kObs, tag). A tag naming several slots
// writes the same value to each of them.
func (s *FAU) Write(k, kObs int, tag Tag, val []float64) error {
	if len(val) != s.m {
		return fmt.Errorf("%w: got %d, want %d", ErrShape, len(val), s.m)
	}
	if tag == 0 {
		return fmt.Errorf("%w: empty tag", ErrKey)
	}
	for _, t := range []Tag{Forecast, Analysis, Universal} {
		if tag&t == 0 {
			continue
		}
		dst, err := s.slot(k, kObs, t)
		if err != nil {
			return err
		}
		copy(dst, val)
	}
	return nil
}

// Read returns the value recorded under the key. With a multi-slot tag
// the first populated slot (in f, a, u order) is returned; the slots
// hold identical values when written by a single Write.
func (s *FAU) Read(k, kObs int, tag Tag) ([]float64, error) {
	for _, t := range []Tag{Forecast, Analysis, Universal} {
		if tag&t == 0 {
			continue
		}
		src, err := s.slot(k, kObs, t)
		if err != nil {
			return nil, err
		}
		out := make([]float64, s.m)
		copy(out, src)
		return out, nil
	}
	return nil, fmt.Errorf("%w: empty tag", ErrKey)
}

// Average reduces each populated slot over the post-burn-in subset of
// its grid, keyed by slot suffix ("f", "a", "u"). Only univariate
// series reduce; see Reducible.
func (s *FAU) Average() map[string]ValWithConf {
	flatten := func(xx [][]float64) []float64 {
		out := make([]float64, len(xx))
		for i, v := range xx {
			out[i] = v[0]
		}
		return out
	}
	avrg := map[string]ValWithConf{
		"f": MeanWithConfMasked(flatten(s.f), s.c.MaskObs()),
		"a": MeanWithConfMasked(flatten(s.a), s.c.MaskObs()),
	}
	if s.storeU {
		avrg["u"] = MeanWithConfMasked(flatten(s.u), s.c.MaskK())
	}
	return avrg
}

// Reducible reports whether Average is defined for this series.
func (s *FAU) Reducible() bool {
	return s.m == 1
}
