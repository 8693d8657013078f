package refine

import (
	"math/rand"
	"time"

	"github.com/docrobotics/layouttune/internal/params"
)

// Strategy generates candidate parameter sets and consumes evaluation results
// to steer toward better ones. Implementations are not safe for concurrent
// use; the loop drives a strategy strictly sequentially.
type Strategy interface {
	// Initialize prepares the strategy from the run configuration.
	Initialize(cfg Config) error

	// HasMore reports whether Next can produce another candidate.
	HasMore() bool

	// Next returns the next candidate, or ErrExhausted when none remain.
	Next() (params.Set, error)

	// Update feeds the evaluation result of a previously returned candidate
	// back into the strategy.
	Update(EvaluationResult)

	// Best returns the highest-scoring candidate observed so far, or nil
	// before any update.
	Best() (params.Set, float64)
}

// NewStrategy resolves a strategy kind to a fresh, initialized instance.
// Unknown kinds fail fast so a misconfigured run never starts.
func NewStrategy(cfg Config) (Strategy, error) {
	var s Strategy
	switch cfg.Strategy {
	case StrategyGrid:
		s = &gridStrategy{}
	case StrategyRandom:
		s = &randomStrategy{}
	case StrategyHillClimbing:
		s = &hillClimbStrategy{}
	default:
		return nil, NewErrorf("unknown strategy kind %q", cfg.Strategy).WithComponent("factory")
	}
	if err := s.Initialize(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// tracker records the best-scoring candidate seen across Update calls.
// Embedded by every strategy so Best is uniform and monotonic.
type tracker struct {
	bestParams params.Set
	bestScore  float64
	seen       bool
}

func (t *tracker) observe(res EvaluationResult) {
	if !t.seen || res.Score > t.bestScore {
		t.bestParams = res.Params.Clone()
		t.bestScore = res.Score
		t.seen = true
	}
}

// Best returns the highest-scoring candidate observed so far.
func (t *tracker) Best() (params.Set, float64) {
	if !t.seen {
		return nil, 0
	}
	return t.bestParams.Clone(), t.bestScore
}

// newRNG builds the strategy RNG, clock-seeded when the config seed is zero.
func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
