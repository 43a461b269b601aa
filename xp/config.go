// Package xp drives twin experiments: it simulates a truth trajectory
// and its observations, feeds an estimation method's output to the
// stats engine step by step, and reduces repeated trials.
package xp

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the experiment setup, normally loaded from yaml.
type Config struct {
	Model struct {
		Dim   int     `yaml:"dim"`
		Force float64 `yaml:"force"`
	} `yaml:"model"`

	Time struct {
		Dt     float64 `yaml:"dt"`
		DkObs  int     `yaml:"dkObs"`
		K      int     `yaml:"K"`
		BurnIn float64 `yaml:"burnIn"`
	} `yaml:"time"`

	Obs struct {
		P        int     `yaml:"p"`        // Number of observed components (leading).
		NoiseStd float64 `yaml:"noiseStd"` // Observation noise standard deviation.
	} `yaml:"obs"`

	Method struct {
		Name string `yaml:"name"`
		N    int    `yaml:"N"` // Ensemble size; 0 selects Gaussian mode.
	} `yaml:"method"`

	Trials       int   `yaml:"trials"`
	Seed         int64 `yaml:"seed"`
	StoreU       bool  `yaml:"storeU"`
	LivePlotting bool  `yaml:"livePlotting"`
}

// LoadConfig reads and validates a yaml experiment setup.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Model.Force == 0 {
		c.Model.Force = 8.0
	}
	if c.Obs.P == 0 {
		c.Obs.P = c.Model.Dim
	}
	if c.Obs.NoiseStd == 0 {
		c.Obs.NoiseStd = 1.0
	}
	if c.Trials == 0 {
		c.Trials = 1
	}
	if c.Method.Name == "" {
		c.Method.Name = "climatology"
	}
}

func (c *Config) validate() error {
	if c.Model.Dim < 4 {
		return errors.Errorf("model dim %d too small for Lorenz-96", c.Model.Dim)
	}
	if c.Obs.P > c.Model.Dim {
		return errors.Errorf("cannot observe %d of %d components", c.Obs.P, c.Model.Dim)
	}
	if c.Time.Dt <= 0 || c.Time.DkObs < 1 || c.Time.K < c.Time.DkObs {
		return errors.Errorf("bad time grid: dt=%v dkObs=%d K=%d",
			c.Time.Dt, c.Time.DkObs, c.Time.K)
	}
	return nil
}
