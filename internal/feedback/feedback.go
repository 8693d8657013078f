// Package feedback translates qualitative human feedback about a rendered
// diagram into concrete parameter adjustments. A static table per layout
// family maps each feedback aspect to the parameters that influence it; the
// translator scales the adjustment by feedback intensity and clamps the
// result into the declared range.
package feedback

import (
	"time"

	"github.com/docrobotics/layouttune/internal/params"
)

// Aspect is the visual quality the feedback is about.
type Aspect string

const (
	AspectSpacing   Aspect = "spacing"
	AspectAlignment Aspect = "alignment"
	AspectGrouping  Aspect = "grouping"
	AspectRouting   Aspect = "routing"
	AspectOverall   Aspect = "overall"
)

// Direction is what the person wants done about the aspect.
type Direction string

const (
	DirectionIncrease   Direction = "increase"
	DirectionDecrease   Direction = "decrease"
	DirectionAcceptable Direction = "acceptable"
)

// Intensity qualifies how strongly the feedback is meant.
type Intensity string

const (
	IntensitySlight      Intensity = "slight"
	IntensityModerate    Intensity = "moderate"
	IntensitySignificant Intensity = "significant"
)

// Factor returns the adjustment multiplier for the intensity.
func (i Intensity) Factor() float64 {
	switch i {
	case IntensitySlight:
		return 0.1
	case IntensitySignificant:
		return 0.5
	default:
		return 0.25
	}
}

// Feedback is one qualitative judgment from a person.
type Feedback struct {
	Aspect    Aspect    `json:"aspect"`
	Direction Direction `json:"direction"`
	Intensity Intensity `json:"intensity"`
	Timestamp time.Time `json:"timestamp"`
}

// Suggestion proposes a single parameter change.
type Suggestion struct {
	Parameter      string  `json:"parameter"`
	CurrentValue   float64 `json:"currentValue"`
	SuggestedValue float64 `json:"suggestedValue"`
	Confidence     float64 `json:"confidence"`
	Rationale      string  `json:"rationale"`
}

// Translation is the full output for one feedback item or an accumulated
// session.
type Translation struct {
	Suggestions []Suggestion `json:"suggestions"`
	Confidence  float64      `json:"confidence"`
}

// mapping ties one aspect to one target parameter. Inverted means "increase"
// feedback moves the parameter down; chargeStrength is the canonical case,
// where more spacing needs a more negative charge.
type mapping struct {
	parameter string
	inverted  bool
	magnitude float64
}

// baseConfidence is attached to every emitted suggestion; the table encodes
// direction reliably but not exact magnitude.
const baseConfidence = 0.8

var aspectTables = map[params.LayoutType]map[Aspect][]mapping{
	params.LayoutForce: {
		AspectSpacing: {
			{parameter: "chargeStrength", inverted: true, magnitude: 150},
			{parameter: "linkDistance", magnitude: 30},
		},
		AspectAlignment: {
			{parameter: "collideRadius", magnitude: 10},
		},
		AspectGrouping: {
			{parameter: "linkStrength", magnitude: 0.2},
			{parameter: "centerStrength", magnitude: 0.1},
		},
		AspectRouting: {
			{parameter: "linkDistance", magnitude: 25},
		},
		AspectOverall: {
			{parameter: "chargeStrength", inverted: true, magnitude: 100},
			{parameter: "linkDistance", magnitude: 20},
		},
	},
	params.LayoutHierarchical: {
		AspectSpacing: {
			{parameter: "rankSep", magnitude: 40},
			{parameter: "nodeSep", magnitude: 30},
		},
		AspectAlignment: {
			{parameter: "nodeSep", magnitude: 20},
		},
		AspectGrouping: {
			{parameter: "rankSep", inverted: true, magnitude: 30},
		},
		AspectRouting: {
			{parameter: "edgeSep", magnitude: 10},
		},
		AspectOverall: {
			{parameter: "rankSep", magnitude: 20},
			{parameter: "nodeSep", magnitude: 20},
		},
	},
}
