// Package params models the tunable parameter space of the supported layout
// algorithms. It declares the per-family ranges, produces default and random
// parameter sets, perturbs existing sets to generate search neighbors, and
// validates arbitrary sets against the declared ranges.
package params

import (
	"encoding/json"
	"fmt"
)

// LayoutType identifies a layout algorithm family.
type LayoutType string

const (
	// LayoutForce is the force-directed simulation family.
	LayoutForce LayoutType = "force"
	// LayoutHierarchical is the layered (rank-based) family.
	LayoutHierarchical LayoutType = "hierarchical"
)

// DiagramType identifies the kind of diagram being laid out.
type DiagramType string

const (
	DiagramFlowchart DiagramType = "flowchart"
	DiagramOrgChart  DiagramType = "orgchart"
	DiagramNetwork   DiagramType = "network"
	DiagramMindMap   DiagramType = "mindmap"
)

// DiagramTypes lists every supported diagram type.
var DiagramTypes = []DiagramType{DiagramFlowchart, DiagramOrgChart, DiagramNetwork, DiagramMindMap}

// Layout returns the layout family used for this diagram type.
func (d DiagramType) Layout() LayoutType {
	switch d {
	case DiagramNetwork, DiagramMindMap:
		return LayoutForce
	default:
		return LayoutHierarchical
	}
}

// Valid reports whether d is a known diagram type.
func (d DiagramType) Valid() bool {
	switch d {
	case DiagramFlowchart, DiagramOrgChart, DiagramNetwork, DiagramMindMap:
		return true
	}
	return false
}

// Kind discriminates the three parameter value shapes.
type Kind int

const (
	Numeric Kind = iota
	Discrete
	Bool
)

// Range declares the domain of a single parameter. Exactly the fields for its
// Kind are meaningful: Min/Max/Step/Default for Numeric, Values/DefaultValue
// for Discrete, DefaultBool for Bool.
type Range struct {
	Kind         Kind
	Min          float64
	Max          float64
	Step         float64
	Default      float64
	Values       []string
	DefaultValue string
	DefaultBool  bool
}

// Cardinality returns the number of distinct values the range admits when
// numeric values are discretized by Step.
func (r Range) Cardinality() int {
	switch r.Kind {
	case Numeric:
		if r.Step <= 0 {
			return 1
		}
		return int((r.Max-r.Min)/r.Step) + 1
	case Discrete:
		return len(r.Values)
	default:
		return 2
	}
}

// Value is a tagged parameter value. The Kind selects which field is set.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Flag bool
}

// Num returns a numeric Value.
func Num(v float64) Value { return Value{Kind: Numeric, Num: v} }

// Str returns a discrete Value.
func Str(v string) Value { return Value{Kind: Discrete, Str: v} }

// Flag returns a boolean Value.
func Flag(v bool) Value { return Value{Kind: Bool, Flag: v} }

// MarshalJSON emits the native JSON representation for the value's kind.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case Numeric:
		return json.Marshal(v.Num)
	case Discrete:
		return json.Marshal(v.Str)
	default:
		return json.Marshal(v.Flag)
	}
}

// UnmarshalJSON infers the kind from the JSON token type.
func (v *Value) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*v = Num(num)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = Flag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Str(s)
		return nil
	}
	return fmt.Errorf("params: cannot decode value %s", string(data))
}

// String renders the value for error messages and rationales.
func (v Value) String() string {
	switch v.Kind {
	case Numeric:
		return fmt.Sprintf("%g", v.Num)
	case Discrete:
		return v.Str
	default:
		return fmt.Sprintf("%t", v.Flag)
	}
}

// Set holds concrete values for one layout family's parameters, keyed by
// parameter name.
type Set map[string]Value

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Equal reports whether two sets hold identical values.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		if other[k] != v {
			return false
		}
	}
	return true
}
