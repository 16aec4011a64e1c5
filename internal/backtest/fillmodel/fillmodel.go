// Package fillmodel implements the three independent Bernoulli predicates the
// matching engine consults when the market touches a resting order: does a
// limit order actually fill on touch, does a triggered stop order actually
// fill, and does a market/stop fill suffer one-tick adverse slippage. All
// three predicates share one seeded PRNG so that a run is fully reproducible
// given its seed.
package fillmodel

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/distuv"

	coreerrors "github.com/abdoElHodaky/backtestcore/pkg/errors"
)

// Config parameterizes a FillModel. All three probabilities must lie in
// [0, 1]; constructing with an out-of-range value is a model error.
type Config struct {
	ProbFillOnLimit float64
	ProbFillOnStop  float64
	ProbSlippage    float64
	RandomSeed      uint64
}

// Validate reports a PROBABILITY_OUT_OF_RANGE error for any probability
// outside [0, 1].
func (c Config) Validate() error {
	for _, p := range []float64{c.ProbFillOnLimit, c.ProbFillOnStop, c.ProbSlippage} {
		if p < 0 || p > 1 {
			return coreerrors.Newf(coreerrors.ErrProbabilityOutOfRange, "fill-model probability %f outside [0,1]", p)
		}
	}
	return nil
}

// FillModel draws the three Bernoulli predicates from one seeded source.
// Probabilities of exactly 0 or 1 short-circuit without consuming a draw, so
// a deterministic-fill configuration (p=1) never perturbs the PRNG stream
// and stays bit-exact across otherwise-identical runs.
type FillModel struct {
	cfg Config
	src rand.Source
}

// New constructs a FillModel from cfg, validating its probabilities.
func New(cfg Config) (*FillModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &FillModel{cfg: cfg, src: rand.NewSource(cfg.RandomSeed)}, nil
}

func (m *FillModel) draw(p float64) bool {
	switch p {
	case 0:
		return false
	case 1:
		return true
	default:
		b := distuv.Bernoulli{P: p, Src: m.src}
		return b.Rand() == 1
	}
}

// IsLimitFilled decides whether a limit order resting exactly at the touch
// price actually fills.
func (m *FillModel) IsLimitFilled() bool { return m.draw(m.cfg.ProbFillOnLimit) }

// IsStopFilled decides whether a stop order that has triggered actually fills.
func (m *FillModel) IsStopFilled() bool { return m.draw(m.cfg.ProbFillOnStop) }

// IsSlipped decides whether a market/stop fill suffers one-tick adverse
// slippage against the taker.
func (m *FillModel) IsSlipped() bool { return m.draw(m.cfg.ProbSlippage) }
