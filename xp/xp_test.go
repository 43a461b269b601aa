package xp

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
model:
  dim: 6
time:
  dt: 0.05
  dkObs: 4
  K: 40
  burnIn: 0.2
obs:
  p: 4
method:
  name: climatology
  N: 8
trials: 2
seed: 5
storeU: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Model.Dim)
	assert.Equal(t, 8.0, cfg.Model.Force) // default
	assert.Equal(t, 4, cfg.Obs.P)
	assert.Equal(t, 1.0, cfg.Obs.NoiseStd) // default
	assert.Equal(t, 8, cfg.Method.N)
	assert.Equal(t, 2, cfg.Trials)
	assert.True(t, cfg.StoreU)
}

func TestLoadConfigRejectsTinyModel(t *testing.T) {
	path := writeConfig(t, `
model:
  dim: 2
time:
  dt: 0.05
  dkObs: 4
  K: 40
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func testConfig(n int) *Config {
	cfg := &Config{}
	cfg.Model.Dim = 6
	cfg.Time.Dt = 0.05
	cfg.Time.DkObs = 4
	cfg.Time.K = 40
	cfg.Time.BurnIn = 0.2
	cfg.Method.N = n
	cfg.Trials = 1
	cfg.Seed = 11
	cfg.StoreU = true
	cfg.applyDefaults()
	return cfg
}

func TestRunTrialEnsemble(t *testing.T) {
	avrg, err := RunTrial(testConfig(8), 11, zap.NewNop())
	require.NoError(t, err)

	for _, key := range []string{"rmse_a", "rmse_f", "rmse_u", "rmv_a", "logp_m_a", "skew_a", "kurt_a"} {
		require.Contains(t, avrg, key)
		require.False(t, math.IsNaN(avrg[key].Val), key)
	}
	assert.Greater(t, avrg["rmse_a"].Val, 0.0)
	assert.Greater(t, avrg["rmv_a"].Val, 0.0)

	// The driver records unit inflation for the no-update baseline.
	assert.InDelta(t, 1.0, avrg["infl"].Val, 1e-12)
	assert.InDelta(t, 0.0, avrg["infl"].Conf, 1e-12)

	// Multivariate series must not appear in the averages.
	assert.NotContains(t, avrg, "mu_a")
	assert.NotContains(t, avrg, "rh_a")
	assert.NotContains(t, avrg, "w_a")
}

func TestRunTrialGaussian(t *testing.T) {
	avrg, err := RunTrial(testConfig(0), 11, zap.NewNop())
	require.NoError(t, err)

	require.Contains(t, avrg, "rmse_a")
	assert.Greater(t, avrg["rmse_a"].Val, 0.0)
	assert.False(t, math.IsNaN(avrg["logp_m_a"].Val))
}

func TestRunTrialDeterministic(t *testing.T) {
	a, err := RunTrial(testConfig(8), 11, zap.NewNop())
	require.NoError(t, err)
	b, err := RunTrial(testConfig(8), 11, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, a["rmse_a"], b["rmse_a"])
}

func TestRunCombinesTrials(t *testing.T) {
	cfg := testConfig(8)
	cfg.Trials = 3
	avrg, err := Run(cfg, zap.NewNop())
	require.NoError(t, err)

	require.Contains(t, avrg, "rmse_a")
	assert.Greater(t, avrg["rmse_a"].Val, 0.0)

	// Combining identical trials would shrink conf by sqrt(3); here we
	// just require it stayed finite and non-negative.
	assert.False(t, math.IsNaN(avrg["rmse_a"].Conf))
	assert.GreaterOrEqual(t, avrg["rmse_a"].Conf, 0.0)
}

func TestUnknownMethod(t *testing.T) {
	cfg := testConfig(8)
	cfg.Method.Name = "wizardry"
	_, err := RunTrial(cfg, 1, zap.NewNop())
	assert.Error(t, err)
}
