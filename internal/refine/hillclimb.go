package refine

import (
	"math/rand"

	"github.com/docrobotics/layouttune/internal/params"
)

// hillClimbStrategy performs local search: it evaluates a seed (the defaults),
// then repeatedly perturbs the current position and moves whenever a neighbor
// scores higher. When a whole round of neighbors fails to improve, it spends
// one of its random restarts on a fresh seed to escape the local optimum;
// with no restarts left it reports exhaustion.
//
// The global best reported by Best is monotonic across Update calls even
// through restarts, which only reset the climbing position.
type hillClimbStrategy struct {
	tracker

	diagram      params.DiagramType
	rng          *rand.Rand
	neighbors    int
	perturbCount int
	magnitude    float64

	current      params.Set
	currentScore float64
	seeded       bool

	queue         []params.Set
	outstanding   int
	roundImproved bool
	restartsLeft  int
	exhausted     bool
}

func (h *hillClimbStrategy) Initialize(cfg Config) error {
	hc := cfg.HillClimbing
	if hc.NeighborsPerIteration < 1 {
		return NewError("hill climbing requires neighborsPerIteration >= 1").WithComponent("hillclimb")
	}
	h.diagram = cfg.DiagramType
	h.neighbors = hc.NeighborsPerIteration
	h.restartsLeft = hc.NumRestarts
	h.perturbCount = hc.PerturbCount
	if h.perturbCount < 1 {
		h.perturbCount = 2
	}
	h.magnitude = hc.Magnitude
	if h.magnitude <= 0 {
		h.magnitude = 0.15
	}
	h.rng = newRNG(cfg.RandomSeed)

	// Round one evaluates the seed alone; neighbors follow once its score is
	// known.
	h.queue = []params.Set{params.Defaults(cfg.DiagramType)}
	h.seeded = false
	h.exhausted = false
	h.outstanding = 0
	return nil
}

func (h *hillClimbStrategy) HasMore() bool {
	return !h.exhausted && (len(h.queue) > 0 || h.outstanding > 0)
}

func (h *hillClimbStrategy) Next() (params.Set, error) {
	if len(h.queue) == 0 {
		return nil, ErrExhausted
	}
	next := h.queue[0]
	h.queue = h.queue[1:]
	h.outstanding++
	return next.Clone(), nil
}

func (h *hillClimbStrategy) Update(res EvaluationResult) {
	h.observe(res)
	if h.outstanding > 0 {
		h.outstanding--
	}

	if !h.seeded {
		// First result of a (re)start establishes the climbing position.
		h.current = res.Params.Clone()
		h.currentScore = res.Score
		h.seeded = true
		h.roundImproved = false
		h.spawnNeighbors()
		return
	}

	if res.Score > h.currentScore {
		h.current = res.Params.Clone()
		h.currentScore = res.Score
		h.roundImproved = true
	}

	// Round boundary: every neighbor of this round has reported back.
	if h.outstanding == 0 && len(h.queue) == 0 {
		if h.roundImproved {
			h.roundImproved = false
			h.spawnNeighbors()
			return
		}
		if h.restartsLeft > 0 {
			h.restartsLeft--
			h.seeded = false
			h.queue = []params.Set{params.RandomSample(h.diagram, h.rng)}
			return
		}
		h.exhausted = true
	}
}

func (h *hillClimbStrategy) spawnNeighbors() {
	h.queue = h.queue[:0]
	for i := 0; i < h.neighbors; i++ {
		h.queue = append(h.queue, params.Perturb(h.current, h.diagram, h.perturbCount, h.magnitude, h.rng))
	}
}
