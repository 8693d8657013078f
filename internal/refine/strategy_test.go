package refine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docrobotics/layouttune/internal/params"
)

func gridTestConfig() Config {
	cfg := DefaultConfig(params.DiagramNetwork)
	cfg.Strategy = StrategyGrid
	cfg.Grid = GridConfig{
		Parameters:            []string{"chargeStrength", "linkDistance"},
		MaxValuesPerParameter: 4,
	}
	return cfg
}

func TestNewStrategyUnknownKind(t *testing.T) {
	cfg := DefaultConfig(params.DiagramNetwork)
	cfg.Strategy = StrategyKind("simulated-annealing")
	_, err := NewStrategy(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy kind")
}

func TestGridEnumeratesWithoutDuplicates(t *testing.T) {
	s, err := NewStrategy(gridTestConfig())
	require.NoError(t, err)

	grid := s.(*gridStrategy)
	assert.Equal(t, 16, grid.TotalCombinations())

	seen := make(map[string]bool)
	count := 0
	for s.HasMore() {
		set, err := s.Next()
		require.NoError(t, err)
		require.Empty(t, params.Validate(set, params.DiagramNetwork))

		key := fmt.Sprintf("%v|%v", set["chargeStrength"], set["linkDistance"])
		require.False(t, seen[key], "duplicate combination %s", key)
		seen[key] = true
		count++
	}
	assert.Equal(t, grid.TotalCombinations(), count)

	_, err = s.Next()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestGridHoldsUnselectedAtDefaults(t *testing.T) {
	s, err := NewStrategy(gridTestConfig())
	require.NoError(t, err)

	defaults := params.Defaults(params.DiagramNetwork)
	set, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, defaults["linkStrength"], set["linkStrength"])
	assert.Equal(t, defaults["velocityDecay"], set["velocityDecay"])
}

func TestGridEvenSamplingIncludesEndpoints(t *testing.T) {
	r, ok := params.Lookup("chargeStrength", params.DiagramNetwork)
	require.True(t, ok)

	values := gridValues(r, 4)
	require.Len(t, values, 4)
	assert.Equal(t, r.Min, values[0].Num)
	assert.Equal(t, r.Max, values[len(values)-1].Num)
}

func TestGridRequiresParameters(t *testing.T) {
	cfg := gridTestConfig()
	cfg.Grid.Parameters = nil
	_, err := NewStrategy(cfg)
	assert.Error(t, err)
}

func TestRandomDrawsExactlyNumSamples(t *testing.T) {
	cfg := DefaultConfig(params.DiagramFlowchart)
	cfg.Strategy = StrategyRandom
	cfg.Random = RandomConfig{NumSamples: 7}
	cfg.RandomSeed = 11

	s, err := NewStrategy(cfg)
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		require.True(t, s.HasMore())
		set, err := s.Next()
		require.NoError(t, err)
		require.NotEmpty(t, set)
		s.Update(EvaluationResult{Params: set, Score: float64(i) / 10})
	}
	assert.False(t, s.HasMore())
	_, err = s.Next()
	assert.ErrorIs(t, err, ErrExhausted)

	best, score := s.Best()
	assert.NotNil(t, best)
	assert.InDelta(t, 0.6, score, 1e-9)
}

func TestHillClimbBestIsMonotonic(t *testing.T) {
	cfg := DefaultConfig(params.DiagramNetwork)
	cfg.Strategy = StrategyHillClimbing
	cfg.HillClimbing = HillClimbingConfig{NeighborsPerIteration: 3, NumRestarts: 2}
	cfg.RandomSeed = 5

	s, err := NewStrategy(cfg)
	require.NoError(t, err)

	// Noisy scores: the reported best must never decrease regardless.
	scores := []float64{0.5, 0.7, 0.3, 0.8, 0.2, 0.6, 0.75, 0.1, 0.65}
	prevBest := 0.0
	for i := 0; s.HasMore() && i < len(scores); i++ {
		set, err := s.Next()
		require.NoError(t, err)
		s.Update(EvaluationResult{Params: set, Score: scores[i], Iteration: i + 1})

		_, best := s.Best()
		assert.GreaterOrEqual(t, best, prevBest)
		prevBest = best
	}
	assert.InDelta(t, 0.8, prevBest, 1e-9)
}

func TestHillClimbRestartsThenExhausts(t *testing.T) {
	cfg := DefaultConfig(params.DiagramNetwork)
	cfg.Strategy = StrategyHillClimbing
	cfg.HillClimbing = HillClimbingConfig{NeighborsPerIteration: 2, NumRestarts: 1}
	cfg.RandomSeed = 9

	s, err := NewStrategy(cfg)
	require.NoError(t, err)

	// Score everything identically: no round ever improves, so the strategy
	// burns its single restart and then exhausts.
	// Candidates: seed, 2 neighbors, restart seed, 2 neighbors = 6.
	count := 0
	for s.HasMore() {
		set, err := s.Next()
		require.NoError(t, err)
		s.Update(EvaluationResult{Params: set, Score: 0.5})
		count++
		require.Less(t, count, 100, "strategy failed to exhaust")
	}
	assert.Equal(t, 6, count)
}
