package refine

import (
	"sort"

	"github.com/docrobotics/layouttune/internal/params"
)

// gridStrategy deterministically enumerates the Cartesian product of the
// selected parameters' candidate values, holding every other parameter at its
// default. It never repeats a combination and is exhausted exactly when the
// precomputed total has been emitted.
type gridStrategy struct {
	tracker

	defaults params.Set
	names    []string
	values   [][]params.Value
	counter  []int
	total    int
	emitted  int
}

func (g *gridStrategy) Initialize(cfg Config) error {
	if len(cfg.Grid.Parameters) == 0 {
		return NewError("grid strategy requires at least one parameter to optimize").WithComponent("grid")
	}
	maxVals := cfg.Grid.MaxValuesPerParameter
	if maxVals < 1 {
		maxVals = 5
	}

	g.defaults = params.Defaults(cfg.DiagramType)

	// Sorted parameter order keeps the enumeration deterministic regardless
	// of how the caller listed them.
	g.names = append([]string(nil), cfg.Grid.Parameters...)
	sort.Strings(g.names)

	g.values = make([][]params.Value, len(g.names))
	g.total = 1
	for i, name := range g.names {
		r, ok := params.Lookup(name, cfg.DiagramType)
		if !ok {
			return NewErrorf("unknown parameter %q for diagram type %s", name, cfg.DiagramType).WithComponent("grid")
		}
		g.values[i] = gridValues(r, maxVals)
		g.total *= len(g.values[i])
	}

	g.counter = make([]int, len(g.names))
	g.emitted = 0
	return nil
}

// gridValues selects the candidate values for one parameter. Numeric ranges
// whose step cardinality fits under the cap use every step value; larger
// ranges are sampled evenly across [Min, Max] including both endpoints.
// Discrete values are taken in declared order, booleans as false then true.
func gridValues(r params.Range, maxVals int) []params.Value {
	switch r.Kind {
	case params.Numeric:
		card := r.Cardinality()
		if card <= maxVals {
			out := make([]params.Value, card)
			for k := 0; k < card; k++ {
				out[k] = params.Num(r.Min + float64(k)*r.Step)
			}
			return out
		}
		if maxVals == 1 {
			return []params.Value{params.Num(r.Default)}
		}
		out := make([]params.Value, maxVals)
		for k := 0; k < maxVals; k++ {
			out[k] = params.Num(r.Min + (r.Max-r.Min)*float64(k)/float64(maxVals-1))
		}
		return out
	case params.Discrete:
		n := len(r.Values)
		if n > maxVals {
			n = maxVals
		}
		out := make([]params.Value, n)
		for k := 0; k < n; k++ {
			out[k] = params.Str(r.Values[k])
		}
		return out
	default:
		if maxVals == 1 {
			return []params.Value{params.Flag(r.DefaultBool)}
		}
		return []params.Value{params.Flag(false), params.Flag(true)}
	}
}

// TotalCombinations returns the precomputed size of the grid.
func (g *gridStrategy) TotalCombinations() int { return g.total }

func (g *gridStrategy) HasMore() bool { return g.emitted < g.total }

func (g *gridStrategy) Next() (params.Set, error) {
	if !g.HasMore() {
		return nil, ErrExhausted
	}
	set := g.defaults.Clone()
	for i, name := range g.names {
		set[name] = g.values[i][g.counter[i]]
	}

	// Mixed-radix increment: the last parameter varies fastest.
	for i := len(g.counter) - 1; i >= 0; i-- {
		g.counter[i]++
		if g.counter[i] < len(g.values[i]) {
			break
		}
		g.counter[i] = 0
	}
	g.emitted++
	return set, nil
}

func (g *gridStrategy) Update(res EvaluationResult) { g.observe(res) }
