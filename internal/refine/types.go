// Package refine implements the automated layout-refinement engine: the
// pluggable search strategies, the iteration-control loop, and the exported
// run result. The layout applicator that turns parameters into geometry and a
// screenshot is supplied by the caller.
package refine

import (
	"context"
	"image"
	"time"

	"github.com/docrobotics/layouttune/internal/params"
	"github.com/docrobotics/layouttune/internal/scoring"
)

// StrategyKind selects a search strategy. The set is closed; the factory
// rejects anything else at construction time.
type StrategyKind string

const (
	StrategyGrid         StrategyKind = "grid"
	StrategyRandom       StrategyKind = "random"
	StrategyHillClimbing StrategyKind = "hillclimbing"
)

// CompletionReason explains why a run stopped.
type CompletionReason string

const (
	ReasonTargetReached CompletionReason = "target_reached"
	ReasonMaxIterations CompletionReason = "max_iterations"
	ReasonPlateau       CompletionReason = "plateau"
	ReasonExhausted     CompletionReason = "exhausted"
	ReasonCancelled     CompletionReason = "cancelled"
)

// State is the loop lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateCancelled State = "cancelled"
)

// GridConfig configures exhaustive grid search over a parameter subset.
type GridConfig struct {
	// Parameters lists the parameter names to enumerate; everything else is
	// held at its default.
	Parameters []string `json:"parameters"`
	// MaxValuesPerParameter caps how many values of each numeric range enter
	// the grid. When the step-implied cardinality exceeds the cap, values are
	// sampled evenly across the range including both endpoints.
	MaxValuesPerParameter int `json:"maxValuesPerParameter"`
}

// RandomConfig configures random search.
type RandomConfig struct {
	NumSamples int `json:"numSamples"`
}

// HillClimbingConfig configures local search with random restarts.
type HillClimbingConfig struct {
	NeighborsPerIteration int `json:"neighborsPerIteration"`
	NumRestarts           int `json:"numRestarts"`
	// PerturbCount is how many parameters each neighbor mutates.
	PerturbCount int `json:"perturbCount"`
	// Magnitude scales the perturbation delta relative to each range's width.
	Magnitude float64 `json:"magnitude"`
}

// Config drives one refinement run.
type Config struct {
	DiagramType params.DiagramType `json:"diagramType"`
	LayoutType  params.LayoutType  `json:"layoutType"`

	MaxIterations         int     `json:"maxIterations"`
	TargetScore           float64 `json:"targetScore"`
	PlateauThreshold      int     `json:"plateauThreshold"`
	MinImprovementPercent float64 `json:"minImprovementPercent"`
	MaxHistorySize        int     `json:"maxHistorySize"`

	Strategy     StrategyKind       `json:"strategy"`
	Grid         GridConfig         `json:"grid,omitempty"`
	Random       RandomConfig       `json:"random,omitempty"`
	HillClimbing HillClimbingConfig `json:"hillClimbing,omitempty"`

	// RandomSeed makes sampling strategies reproducible; 0 seeds from the
	// clock.
	RandomSeed int64 `json:"randomSeed,omitempty"`
}

// DefaultConfig returns a working configuration for the diagram type.
func DefaultConfig(diagram params.DiagramType) Config {
	return Config{
		DiagramType:           diagram,
		LayoutType:            diagram.Layout(),
		MaxIterations:         20,
		TargetScore:           0.85,
		PlateauThreshold:      5,
		MinImprovementPercent: 1.0,
		MaxHistorySize:        50,
		Strategy:              StrategyHillClimbing,
		HillClimbing: HillClimbingConfig{
			NeighborsPerIteration: 4,
			NumRestarts:           2,
			PerturbCount:          2,
			Magnitude:             0.15,
		},
	}
}

// EvaluationResult feeds a scored candidate back into a strategy.
type EvaluationResult struct {
	Params    params.Set    `json:"parameters"`
	Score     float64       `json:"score"`
	Duration  time.Duration `json:"duration"`
	Iteration int           `json:"iteration"`
}

// Iteration records one completed refinement round.
type Iteration struct {
	Index            int                    `json:"index"`
	Params           params.Set             `json:"parameters"`
	Quality          scoring.CombinedResult `json:"quality"`
	ScreenshotRef    string                 `json:"screenshotRef,omitempty"`
	Timestamp        time.Time              `json:"timestamp"`
	Duration         time.Duration          `json:"duration"`
	Improved         bool                   `json:"improved"`
	ImprovementDelta float64                `json:"improvementDelta"`
	IsBest           bool                   `json:"isBest"`
}

// Summary aggregates a finished run.
type Summary struct {
	StartScore         float64       `json:"startScore"`
	EndScore           float64       `json:"endScore"`
	BestScore          float64       `json:"bestScore"`
	MeanScore          float64       `json:"meanScore"`
	ImprovementPercent float64       `json:"improvementPercent"`
	TotalIterations    int           `json:"totalIterations"`
	TotalDuration      time.Duration `json:"totalDuration"`
}

// Result is the full outcome of one refinement run.
type Result struct {
	Iterations []Iteration      `json:"history"`
	BestParams params.Set       `json:"bestParameters"`
	BestScore  float64          `json:"bestScore"`
	Reason     CompletionReason `json:"completionReason"`
	Summary    Summary          `json:"summary"`
}

// Layout is the geometry (and optional screenshot) produced by the external
// layout applicator for one parameter set.
type Layout struct {
	Nodes         []scoring.Node
	Edges         []scoring.Edge
	Screenshot    image.Image
	ScreenshotRef string
}

// LayoutApplicator renders a parameter set into positioned geometry. Supplied
// by the rendering subsystem; calls may be slow and are never run
// concurrently by the loop.
type LayoutApplicator interface {
	ApplyLayout(ctx context.Context, set params.Set) (*Layout, error)
}

// ApplicatorFunc adapts a function to the LayoutApplicator interface.
type ApplicatorFunc func(ctx context.Context, set params.Set) (*Layout, error)

// ApplyLayout implements LayoutApplicator.
func (f ApplicatorFunc) ApplyLayout(ctx context.Context, set params.Set) (*Layout, error) {
	return f(ctx, set)
}

// ProgressFunc is invoked synchronously after every completed round.
type ProgressFunc func(iteration, maxIterations int, currentScore, bestScore float64, status string)
