package params

import (
	"fmt"
	"math/rand"
	"sort"
)

// Defaults returns the default parameter set for the diagram type, with any
// per-diagram overrides applied.
func Defaults(diagram DiagramType) Set {
	ranges := Ranges(diagram)
	set := make(Set, len(ranges))
	for name, r := range ranges {
		switch r.Kind {
		case Numeric:
			set[name] = Num(r.Default)
		case Discrete:
			set[name] = Str(r.DefaultValue)
		default:
			set[name] = Flag(r.DefaultBool)
		}
	}
	for name, v := range diagramDefaults[diagram] {
		set[name] = Num(v)
	}
	return set
}

// Validate checks every value of the set against the declared ranges and
// returns one message per problem. It never fails outright so callers can
// surface all problems at once; an empty slice means the set is valid.
//
// Numeric values are checked against [Min, Max] only, not step alignment:
// perturbation produces off-grid values on purpose and those are legal.
func Validate(set Set, diagram DiagramType) []string {
	ranges := Ranges(diagram)
	var problems []string

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := set[name]
		r, ok := ranges[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: unknown parameter for %s layout", name, diagram.Layout()))
			continue
		}
		if v.Kind != r.Kind {
			problems = append(problems, fmt.Sprintf("%s: wrong value kind", name))
			continue
		}
		switch r.Kind {
		case Numeric:
			if v.Num < r.Min || v.Num > r.Max {
				problems = append(problems, fmt.Sprintf("%s: %g outside [%g, %g]", name, v.Num, r.Min, r.Max))
			}
		case Discrete:
			if !contains(r.Values, v.Str) {
				problems = append(problems, fmt.Sprintf("%s: %q not one of %v", name, v.Str, r.Values))
			}
		}
	}

	for name := range ranges {
		if _, ok := set[name]; !ok {
			problems = append(problems, fmt.Sprintf("%s: missing", name))
		}
	}
	sort.Strings(problems)
	return problems
}

// RandomSample draws each parameter independently: uniform over the numeric
// range respecting step, uniform pick over discrete values, coin flip for
// booleans. The result always validates.
func RandomSample(diagram DiagramType, rng *rand.Rand) Set {
	ranges := Ranges(diagram)
	set := make(Set, len(ranges))
	for name, r := range ranges {
		switch r.Kind {
		case Numeric:
			k := rng.Intn(r.Cardinality())
			set[name] = Num(r.Min + float64(k)*r.Step)
		case Discrete:
			set[name] = Str(r.Values[rng.Intn(len(r.Values))])
		default:
			set[name] = Flag(rng.Intn(2) == 1)
		}
	}
	return set
}

// Perturb returns a copy of base with count parameters mutated. Numeric
// parameters move by a delta proportional to magnitude times the range width
// and are reclamped; discrete and boolean parameters are redrawn. Parameters
// not selected are left untouched.
func Perturb(base Set, diagram DiagramType, count int, magnitude float64, rng *rand.Rand) Set {
	out := base.Clone()
	names := make([]string, 0, len(base))
	for name := range base {
		if _, ok := Lookup(name, diagram); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })

	if count > len(names) {
		count = len(names)
	}
	for _, name := range names[:count] {
		r, _ := Lookup(name, diagram)
		switch r.Kind {
		case Numeric:
			width := r.Max - r.Min
			delta := magnitude * width * (rng.Float64()*2 - 1)
			out[name] = Num(clampNum(out[name].Num+delta, r))
		case Discrete:
			out[name] = Str(r.Values[rng.Intn(len(r.Values))])
		default:
			out[name] = Flag(rng.Intn(2) == 1)
		}
	}
	return out
}

// SpaceSize returns the product of every parameter's cardinality for the
// diagram type. It bounds exhaustive grid search.
func SpaceSize(diagram DiagramType) int {
	size := 1
	for _, r := range Ranges(diagram) {
		size *= r.Cardinality()
	}
	return size
}

// Clamp forces a numeric value into the declared range for the parameter.
// Unknown parameters pass through unchanged: excursions come from arithmetic,
// not user error, so they are corrected rather than rejected.
func Clamp(name string, v float64, diagram DiagramType) float64 {
	r, ok := Lookup(name, diagram)
	if !ok || r.Kind != Numeric {
		return v
	}
	return clampNum(v, r)
}

func clampNum(v float64, r Range) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
