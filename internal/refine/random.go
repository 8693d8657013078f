package refine

import (
	"math/rand"

	"github.com/docrobotics/layouttune/internal/params"
)

// randomStrategy draws a fixed number of independent uniform samples from the
// parameter space and then reports exhaustion. It keeps the highest-scoring
// sample seen.
type randomStrategy struct {
	tracker

	diagram params.DiagramType
	rng     *rand.Rand
	samples int
	drawn   int
}

func (r *randomStrategy) Initialize(cfg Config) error {
	if cfg.Random.NumSamples < 1 {
		return NewError("random strategy requires numSamples >= 1").WithComponent("random")
	}
	r.diagram = cfg.DiagramType
	r.samples = cfg.Random.NumSamples
	r.rng = newRNG(cfg.RandomSeed)
	r.drawn = 0
	return nil
}

func (r *randomStrategy) HasMore() bool { return r.drawn < r.samples }

func (r *randomStrategy) Next() (params.Set, error) {
	if !r.HasMore() {
		return nil, ErrExhausted
	}
	r.drawn++
	return params.RandomSample(r.diagram, r.rng), nil
}

func (r *randomStrategy) Update(res EvaluationResult) { r.observe(res) }
