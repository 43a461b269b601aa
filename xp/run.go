package xp

import (
	"math/rand"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/fangqx/DAPPER/chrono"
	"github.com/fangqx/DAPPER/model"
	"github.com/fangqx/DAPPER/series"
	"github.com/fangqx/DAPPER/stats"
)

// simulate integrates the truth trajectory from a spun-up initial
// condition and draws noisy observations of its leading p components.
func simulate(cfg *Config, mdl model.Model, c *chrono.Chrono, rng *rand.Rand) (xx, yy *mat.Dense) {
	m := mdl.Dim()
	x := make([]float64, m)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	// Spin up onto the attractor before the experiment starts.
	for k := 0; k < 10*c.DkObs+1000; k++ {
		x = mdl.Step(x, 0, c.Dt)
	}

	xx = mat.NewDense(c.K+1, m, nil)
	xx.SetRow(0, x)
	for k := 1; k <= c.K; k++ {
		x = mdl.Step(x, c.TT[k-1], c.Dt)
		xx.SetRow(k, x)
	}

	p := cfg.Obs.P
	yy = mat.NewDense(c.KObs+1, p, nil)
	for j, k := range c.KKObs {
		for i := 0; i < p; i++ {
			yy.Set(j, i, xx.At(k, i)+cfg.Obs.NoiseStd*rng.NormFloat64())
		}
	}
	return xx, yy
}

func newMethod(cfg *Config) (Method, error) {
	switch cfg.Method.Name {
	case "climatology":
		return &Climatology{N: cfg.Method.N}, nil
	}
	return nil, errors.Errorf("unknown method %q", cfg.Method.Name)
}

// RunTrial performs one full experiment: simulate, assess every step,
// and reduce the diagnostic series to time averages.
func RunTrial(cfg *Config, seed int64, log *zap.Logger) (stats.Avrgs, error) {
	c, err := chrono.New(cfg.Time.Dt, cfg.Time.DkObs, cfg.Time.K, cfg.Time.BurnIn)
	if err != nil {
		return nil, err
	}
	mdl := model.NewLorenz96Forced(cfg.Model.Dim, cfg.Model.Force)
	rng := rand.New(rand.NewSource(seed))
	xx, yy := simulate(cfg, mdl, c, rng)

	st, err := stats.New(stats.Config{
		N:            cfg.Method.N,
		StoreU:       cfg.StoreU,
		LivePlotting: cfg.LivePlotting,
	}, c, xx, yy)
	if err != nil {
		return nil, err
	}

	mth, err := newMethod(cfg)
	if err != nil {
		return nil, err
	}
	if err := mth.Init(rng, mdl, c); err != nil {
		return nil, errors.Wrap(err, "method init")
	}

	est, err := mth.Estimate(0, chrono.NoObs, nil)
	if err != nil {
		return nil, errors.Wrap(err, "estimate at k=0")
	}
	if err := st.Assess(0, chrono.NoObs, 0, est); err != nil {
		return nil, err
	}

	for k := 1; k <= c.K; k++ {
		kObs := c.ObsIndex(k)
		var y []float64
		if kObs != chrono.NoObs {
			y = make([]float64, cfg.Obs.P)
			mat.Row(y, kObs, yy)
		}
		est, err := mth.Estimate(k, kObs, y)
		if err != nil {
			return nil, errors.Wrapf(err, "estimate at k=%d", k)
		}
		if kObs == chrono.NoObs {
			if err := st.Assess(k, kObs, 0, est); err != nil {
				return nil, err
			}
			continue
		}
		// Forecast before the (would-be) update, then the default
		// analysis+universal slots after it.
		if err := st.Assess(k, kObs, series.Forecast, est); err != nil {
			return nil, err
		}
		if err := st.Assess(k, kObs, 0, est); err != nil {
			return nil, err
		}
		// Climatology applies no update, so no inflation either.
		if err := st.SetInfl(kObs, 1.0); err != nil {
			return nil, err
		}
	}

	avrg := st.AverageInTime()
	if log != nil {
		log.Debug("trial finished",
			zap.Int64("seed", seed),
			zap.Float64("rmse_a", avrg["rmse_a"].Val))
	}
	return avrg, nil
}

// Run executes cfg.Trials independent trials in parallel and combines
// their averaged outputs.
func Run(cfg *Config, log *zap.Logger) (stats.Avrgs, error) {
	trials := make([]stats.Avrgs, cfg.Trials)
	var g errgroup.Group
	for j := 0; j < cfg.Trials; j++ {
		j := j
		g.Go(func() error {
			avrg, err := RunTrial(cfg, cfg.Seed+int64(j), log)
			if err != nil {
				return errors.Wrapf(err, "trial %d", j)
			}
			trials[j] = avrg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if log != nil {
		log.Info("all trials finished", zap.Int("trials", cfg.Trials))
	}
	return stats.AverageEachField([][]stats.Avrgs{trials})[0], nil
}
