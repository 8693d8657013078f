package params

// Static range tables for each layout family. Built once at init and treated
// as read-only afterwards; accessors hand out copies so callers can never
// mutate the tables.

var forceRanges = map[string]Range{
	"chargeStrength": {Kind: Numeric, Min: -5000, Max: 0, Step: 50, Default: -300},
	"linkDistance":   {Kind: Numeric, Min: 10, Max: 500, Step: 10, Default: 100},
	"linkStrength":   {Kind: Numeric, Min: 0, Max: 2, Step: 0.05, Default: 0.7},
	"collideRadius":  {Kind: Numeric, Min: 0, Max: 100, Step: 5, Default: 30},
	"centerStrength": {Kind: Numeric, Min: 0, Max: 1, Step: 0.05, Default: 0.1},
	"alphaDecay":     {Kind: Numeric, Min: 0.001, Max: 0.3, Step: 0.001, Default: 0.0228},
	"velocityDecay":  {Kind: Numeric, Min: 0.1, Max: 0.9, Step: 0.05, Default: 0.4},
	"manyBodyTheta":  {Kind: Numeric, Min: 0.1, Max: 2, Step: 0.1, Default: 0.9},
}

var hierarchicalRanges = map[string]Range{
	"rankSep":       {Kind: Numeric, Min: 10, Max: 300, Step: 10, Default: 50},
	"nodeSep":       {Kind: Numeric, Min: 10, Max: 200, Step: 10, Default: 50},
	"edgeSep":       {Kind: Numeric, Min: 5, Max: 100, Step: 5, Default: 10},
	"marginX":       {Kind: Numeric, Min: 0, Max: 100, Step: 10, Default: 20},
	"marginY":       {Kind: Numeric, Min: 0, Max: 100, Step: 10, Default: 20},
	"rankDir":       {Kind: Discrete, Values: []string{"TB", "BT", "LR", "RL"}, DefaultValue: "TB"},
	"ranker":        {Kind: Discrete, Values: []string{"network-simplex", "tight-tree", "longest-path"}, DefaultValue: "network-simplex"},
	"align":         {Kind: Discrete, Values: []string{"UL", "UR", "DL", "DR"}, DefaultValue: "UL"},
	"compactLayout": {Kind: Bool, DefaultBool: false},
}

// diagramDefaults overrides family defaults for specific diagram types.
// Mind maps spread further apart; org charts use wider rank separation.
var diagramDefaults = map[DiagramType]map[string]float64{
	DiagramMindMap:  {"linkDistance": 150, "chargeStrength": -500},
	DiagramOrgChart: {"rankSep": 80, "nodeSep": 60},
}

// Ranges returns a copy of the range table for the diagram type's layout
// family.
func Ranges(diagram DiagramType) map[string]Range {
	src := forceRanges
	if diagram.Layout() == LayoutHierarchical {
		src = hierarchicalRanges
	}
	out := make(map[string]Range, len(src))
	for name, r := range src {
		out[name] = r
	}
	return out
}

// Lookup returns the declared range for a single parameter of the diagram
// type's layout family.
func Lookup(name string, diagram DiagramType) (Range, bool) {
	return LookupFamily(name, diagram.Layout())
}

// LookupFamily returns the declared range for a single parameter of a layout
// family directly.
func LookupFamily(name string, layout LayoutType) (Range, bool) {
	src := forceRanges
	if layout == LayoutHierarchical {
		src = hierarchicalRanges
	}
	r, ok := src[name]
	return r, ok
}
