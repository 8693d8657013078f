package feedback

import (
	"fmt"
	"sort"

	"github.com/docrobotics/layouttune/internal/params"
)

// Translate converts one feedback item into parameter suggestions against the
// current parameter set. Direction "acceptable" produces no suggestions with
// full confidence: the person is telling us to leave the aspect alone.
//
// For the other directions the adjustment is the mapping's base magnitude
// scaled by intensity, sign-flipped when the mapping's effect is inverted
// relative to the requested direction, and clamped into the declared range.
// A suggestion is emitted only when the clamped value actually differs from
// the current one.
func Translate(fb Feedback, current params.Set, layout params.LayoutType) Translation {
	if fb.Direction == DirectionAcceptable {
		return Translation{Confidence: 1.0}
	}

	mappings := aspectTables[layout][fb.Aspect]
	var out Translation
	for _, m := range mappings {
		r, ok := params.LookupFamily(m.parameter, layout)
		if !ok || r.Kind != params.Numeric {
			continue
		}
		currentValue := r.Default
		if v, ok := current[m.parameter]; ok && v.Kind == params.Numeric {
			currentValue = v.Num
		}

		delta := m.magnitude * fb.Intensity.Factor()
		if fb.Direction == DirectionDecrease {
			delta = -delta
		}
		if m.inverted {
			delta = -delta
		}

		suggested := clamp(currentValue+delta, r)
		if suggested == currentValue {
			continue
		}
		out.Suggestions = append(out.Suggestions, Suggestion{
			Parameter:      m.parameter,
			CurrentValue:   currentValue,
			SuggestedValue: suggested,
			Confidence:     baseConfidence,
			Rationale: fmt.Sprintf("%s %s (%s): %s %g -> %g",
				fb.Aspect, fb.Direction, fb.Intensity, m.parameter, currentValue, suggested),
		})
	}
	out.Confidence = meanConfidence(out.Suggestions)
	return out
}

// TranslateAccumulated translates an ordered feedback session as one batch.
// Each item's suggestion confidences are weighted by recency (item i of N
// carries weight (i+1)/N), then for every distinct parameter the suggested
// values are combined into a confidence-weighted average, clamped, and
// reported as a single aggregated suggestion. The batch pass over the fixed
// input keeps the result reproducible.
func TranslateAccumulated(items []Feedback, current params.Set, layout params.LayoutType) Translation {
	if len(items) == 0 {
		return Translation{Confidence: 1.0}
	}

	type contribution struct {
		value      float64
		confidence float64
	}
	byParameter := make(map[string][]contribution)
	currentValues := make(map[string]float64)

	n := float64(len(items))
	for i, fb := range items {
		weight := float64(i+1) / n
		t := Translate(fb, current, layout)
		for _, s := range t.Suggestions {
			byParameter[s.Parameter] = append(byParameter[s.Parameter], contribution{
				value:      s.SuggestedValue,
				confidence: s.Confidence * weight,
			})
			currentValues[s.Parameter] = s.CurrentValue
		}
	}

	names := make([]string, 0, len(byParameter))
	for name := range byParameter {
		names = append(names, name)
	}
	sort.Strings(names)

	var out Translation
	for _, name := range names {
		contribs := byParameter[name]
		var weightedSum, confidenceSum float64
		for _, c := range contribs {
			weightedSum += c.value * c.confidence
			confidenceSum += c.confidence
		}
		if confidenceSum == 0 {
			continue
		}
		r, _ := params.LookupFamily(name, layout)
		suggested := clamp(weightedSum/confidenceSum, r)
		out.Suggestions = append(out.Suggestions, Suggestion{
			Parameter:      name,
			CurrentValue:   currentValues[name],
			SuggestedValue: suggested,
			Confidence:     confidenceSum / float64(len(contribs)),
			Rationale:      fmt.Sprintf("aggregated from %d feedback item(s)", len(contribs)),
		})
	}
	out.Confidence = meanConfidence(out.Suggestions)
	return out
}

// ApplySuggestions returns a new parameter set with every suggestion written.
// The input set is deep-copied and never mutated.
func ApplySuggestions(set params.Set, suggestions []Suggestion) params.Set {
	out := set.Clone()
	for _, s := range suggestions {
		out[s.Parameter] = params.Num(s.SuggestedValue)
	}
	return out
}

func meanConfidence(suggestions []Suggestion) float64 {
	if len(suggestions) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range suggestions {
		sum += s.Confidence
	}
	return sum / float64(len(suggestions))
}

func clamp(v float64, r params.Range) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}
