package refine

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/docrobotics/layouttune/internal/params"
	"github.com/docrobotics/layouttune/internal/scoring"
)

// Scorer turns applied geometry into a combined quality score. The default
// implementation fuses readability with similarity against a reference image;
// tests substitute fixed scorers.
type Scorer interface {
	Score(layout *Layout) (*scoring.CombinedResult, error)
}

// CombinedScorer scores layouts with scoring.CombinedScore against an
// optional reference image.
type CombinedScorer struct {
	Reference image.Image
	Config    Config
}

// Score implements Scorer.
func (c *CombinedScorer) Score(layout *Layout) (*scoring.CombinedResult, error) {
	return scoring.CombinedScore(layout.Nodes, layout.Edges, c.Config.LayoutType,
		c.Config.DiagramType, c.Reference, layout.Screenshot, c.Config.TargetScore)
}

// Loop orchestrates strategy and scorer rounds: it requests a candidate,
// applies it, scores it, records the result, and decides whether to continue.
// Rounds are strictly sequential; the applicator is assumed stateful and
// expensive, so no two evaluations ever overlap. A single Loop must not have
// overlapping Run invocations; independent loops are independent.
type Loop struct {
	mu       sync.Mutex
	cfg      Config
	strategy Strategy
	scorer   Scorer

	history   []Iteration
	bestIdx   int
	bestScore float64

	state     State
	running   bool
	iterCount int

	// recentImprovements holds the relative improvement percent of the last
	// PlateauThreshold rounds for plateau detection.
	recentImprovements []float64

	cancelled atomic.Bool
}

// NewLoop builds a loop from the configuration, failing fast on an unknown
// strategy kind or an out-of-range target score with no partial state.
func NewLoop(cfg Config) (*Loop, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	strategy, err := NewStrategy(cfg)
	if err != nil {
		return nil, err
	}
	return &Loop{
		cfg:      cfg,
		strategy: strategy,
		scorer:   &CombinedScorer{Config: cfg},
		state:    StateIdle,
		bestIdx:  -1,
	}, nil
}

func validateConfig(cfg Config) error {
	if !cfg.DiagramType.Valid() {
		return NewErrorf("unknown diagram type %q", cfg.DiagramType).WithComponent("loop")
	}
	if cfg.TargetScore < 0 || cfg.TargetScore > 1 {
		return NewErrorf("target score %g outside [0, 1]", cfg.TargetScore).WithComponent("loop")
	}
	if cfg.MaxIterations < 1 {
		return NewError("maxIterations must be at least 1").WithComponent("loop")
	}
	switch cfg.Strategy {
	case StrategyGrid, StrategyRandom, StrategyHillClimbing:
	default:
		return NewErrorf("unknown strategy kind %q", cfg.Strategy).WithComponent("loop")
	}
	return nil
}

// SetScorer replaces the scorer. Intended for callers that pre-build a
// reference-aware scorer, and for tests.
func (l *Loop) SetScorer(s Scorer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scorer = s
}

// SetReference attaches the reference image used by the default scorer.
func (l *Loop) SetReference(ref image.Image) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scorer = &CombinedScorer{Reference: ref, Config: l.cfg}
}

// Cancel requests cooperative cancellation. The flag is checked between
// rounds only; an in-flight applicator or scorer call is never interrupted,
// so the run may complete one more round after Cancel returns.
func (l *Loop) Cancel() { l.cancelled.Store(true) }

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// History returns a copy of the recorded iterations, including those
// accumulated before a failed run.
func (l *Loop) History() []Iteration {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Iteration, len(l.history))
	copy(out, l.history)
	return out
}

// GetConfig returns the active configuration.
func (l *Loop) GetConfig() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// SetConfig swaps the configuration; the change takes effect from the next
// round onward, never retroactively. Strategy-kind changes apply on the next
// Reset, since the running strategy keeps its accumulated state.
func (l *Loop) SetConfig(cfg Config) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
	return nil
}

// Reset clears history and strategy state while keeping the configuration,
// so one Loop instance can be run repeatedly.
func (l *Loop) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return NewError("cannot reset a running loop").WithComponent("loop")
	}
	strategy, err := NewStrategy(l.cfg)
	if err != nil {
		return err
	}
	l.strategy = strategy
	l.history = nil
	l.recentImprovements = nil
	l.iterCount = 0
	l.bestIdx = -1
	l.bestScore = 0
	l.state = StateIdle
	l.cancelled.Store(false)
	return nil
}

// Run drives refinement rounds until a termination rule fires. A failing
// applicator or scorer aborts the run with the error; everything recorded up
// to that point stays retrievable through History. Cancellation is not an
// error: the result carries reason "cancelled" and whatever history exists.
func (l *Loop) Run(ctx context.Context, applicator LayoutApplicator, onProgress ProgressFunc) (*Result, error) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil, NewError("loop already has a run in flight").WithComponent("loop")
	}
	l.running = true
	l.state = StateRunning
	l.mu.Unlock()

	started := time.Now()
	for {
		if l.cancelled.Load() || ctx.Err() != nil {
			return l.finish(ReasonCancelled, started), nil
		}

		l.mu.Lock()
		cfg := l.cfg
		strategy := l.strategy
		scorer := l.scorer
		l.mu.Unlock()

		candidate, err := strategy.Next()
		if err == ErrExhausted {
			return l.finish(ReasonExhausted, started), nil
		}
		if err != nil {
			return nil, l.fail(WrapError(err, "requesting next candidate").WithComponent("loop"))
		}

		roundStart := time.Now()
		layout, err := applicator.ApplyLayout(ctx, candidate)
		if err != nil {
			return nil, l.fail(WrapError(err, "applying layout").WithComponent("loop").WithOperation("apply"))
		}

		quality, err := scorer.Score(layout)
		if err != nil {
			return nil, l.fail(WrapError(err, "scoring layout").WithComponent("loop").WithOperation("score"))
		}
		duration := time.Since(roundStart)

		iter, reason := l.record(cfg, candidate, layout, quality, duration)
		strategy.Update(EvaluationResult{
			Params:    candidate,
			Score:     quality.Score,
			Duration:  duration,
			Iteration: iter.Index,
		})

		if onProgress != nil {
			_, best := l.bestSnapshot()
			onProgress(iter.Index, cfg.MaxIterations, quality.Score, best, string(l.State()))
		}

		if reason != "" {
			return l.finish(reason, started), nil
		}
	}
}

// record appends the iteration, maintains the best-so-far bookkeeping, trims
// history, and evaluates the termination rules for this round. An empty
// reason means the run continues.
func (l *Loop) record(cfg Config, candidate params.Set, layout *Layout, quality *scoring.CombinedResult, duration time.Duration) (Iteration, CompletionReason) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.iterCount++
	prevBest := l.bestScore
	hadBest := l.bestIdx >= 0

	improved := !hadBest || quality.Score > prevBest
	delta := quality.Score
	if hadBest {
		delta = quality.Score - prevBest
	}

	iter := Iteration{
		Index:            l.iterCount,
		Params:           candidate.Clone(),
		Quality:          *quality,
		ScreenshotRef:    layout.ScreenshotRef,
		Timestamp:        time.Now().UTC(),
		Duration:         duration,
		Improved:         improved,
		ImprovementDelta: delta,
		IsBest:           improved,
	}

	if improved {
		// Only the global best carries the flag.
		for i := range l.history {
			l.history[i].IsBest = false
		}
		l.bestIdx = iter.Index
		l.bestScore = quality.Score
	}
	l.history = append(l.history, iter)
	l.trimHistoryLocked(cfg.MaxHistorySize)

	// Plateau window tracks relative improvement against the running best.
	pct := 100.0
	if hadBest && prevBest > 0 {
		pct = delta / prevBest * 100
		if pct < 0 {
			pct = 0
		}
	}
	if cfg.PlateauThreshold > 0 {
		l.recentImprovements = append(l.recentImprovements, pct)
		if len(l.recentImprovements) > cfg.PlateauThreshold {
			l.recentImprovements = l.recentImprovements[len(l.recentImprovements)-cfg.PlateauThreshold:]
		}
	}

	return iter, l.terminationLocked(cfg, quality.Score)
}

// terminationLocked applies the termination rules in priority order.
func (l *Loop) terminationLocked(cfg Config, score float64) CompletionReason {
	if score >= cfg.TargetScore {
		return ReasonTargetReached
	}
	if l.iterCount >= cfg.MaxIterations {
		return ReasonMaxIterations
	}
	if cfg.PlateauThreshold > 0 && len(l.recentImprovements) == cfg.PlateauThreshold {
		plateaued := true
		for _, pct := range l.recentImprovements {
			if pct >= cfg.MinImprovementPercent {
				plateaued = false
				break
			}
		}
		if plateaued {
			return ReasonPlateau
		}
	}
	if l.cancelled.Load() {
		return ReasonCancelled
	}
	return ""
}

// trimHistoryLocked bounds the history length, dropping oldest entries first
// but never evicting the globally best iteration.
func (l *Loop) trimHistoryLocked(maxSize int) {
	if maxSize <= 0 {
		return
	}
	for len(l.history) > maxSize {
		dropped := false
		for i := range l.history {
			if l.history[i].Index != l.bestIdx {
				l.history = append(l.history[:i], l.history[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			return
		}
	}
}

func (l *Loop) bestSnapshot() (int, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bestIdx, l.bestScore
}

func (l *Loop) fail(err error) error {
	l.mu.Lock()
	l.running = false
	l.state = StateStopped
	l.mu.Unlock()
	return err
}

func (l *Loop) finish(reason CompletionReason, started time.Time) *Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	switch reason {
	case ReasonCancelled:
		l.state = StateCancelled
	default:
		l.state = StateCompleted
	}

	iterations := make([]Iteration, len(l.history))
	copy(iterations, l.history)

	result := &Result{
		Iterations: iterations,
		BestScore:  l.bestScore,
		Reason:     reason,
	}
	if l.bestIdx >= 0 {
		for _, it := range l.history {
			if it.Index == l.bestIdx {
				result.BestParams = it.Params.Clone()
			}
		}
	}
	result.Summary = summarize(iterations, l.bestScore, time.Since(started))
	return result
}

// summarize computes the run statistics over the recorded score series.
func summarize(iterations []Iteration, bestScore float64, total time.Duration) Summary {
	s := Summary{
		BestScore:       bestScore,
		TotalIterations: len(iterations),
		TotalDuration:   total,
	}
	if len(iterations) == 0 {
		return s
	}
	scores := make([]float64, len(iterations))
	for i, it := range iterations {
		scores[i] = it.Quality.Score
	}
	s.StartScore = scores[0]
	s.EndScore = scores[len(scores)-1]
	if mean, err := stats.Mean(scores); err == nil {
		s.MeanScore = mean
	}
	if s.StartScore > 0 {
		s.ImprovementPercent = (bestScore - s.StartScore) / s.StartScore * 100
	}
	return s
}
