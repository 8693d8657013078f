package params

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	for _, diagram := range DiagramTypes {
		t.Run(string(diagram), func(t *testing.T) {
			set := Defaults(diagram)
			assert.Empty(t, Validate(set, diagram))
		})
	}
}

func TestRandomSampleAlwaysValid(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, diagram := range DiagramTypes {
		t.Run(string(diagram), func(t *testing.T) {
			for i := 0; i < 150; i++ {
				set := RandomSample(diagram, rng)
				problems := Validate(set, diagram)
				require.Empty(t, problems, "sample %d: %v", i, problems)
			}
		})
	}
}

func TestPerturbStaysValid(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	magnitudes := []float64{0, 0.05, 0.3, 1.0, 5.0}
	for _, diagram := range DiagramTypes {
		base := Defaults(diagram)
		for _, mag := range magnitudes {
			for i := 0; i < 50; i++ {
				got := Perturb(base, diagram, 3, mag, rng)
				require.Empty(t, Validate(got, diagram), "diagram=%s magnitude=%g", diagram, mag)
			}
		}
	}
}

func TestPerturbLeavesUnselectedUntouched(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	base := Defaults(DiagramNetwork)
	got := Perturb(base, DiagramNetwork, 1, 0.5, rng)

	changed := 0
	for name, v := range base {
		if got[name] != v {
			changed++
		}
	}
	assert.LessOrEqual(t, changed, 1)
	// Base itself is never mutated.
	assert.True(t, base.Equal(Defaults(DiagramNetwork)))
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	set := Defaults(DiagramFlowchart)
	set["rankSep"] = Num(99999)
	set["rankDir"] = Str("diagonal")
	set["bogus"] = Num(1)
	delete(set, "nodeSep")

	problems := Validate(set, DiagramFlowchart)
	assert.Len(t, problems, 4)
}

func TestSpaceSizeIsProductOfCardinalities(t *testing.T) {
	for _, diagram := range DiagramTypes {
		want := 1
		for _, r := range Ranges(diagram) {
			want *= r.Cardinality()
		}
		assert.Equal(t, want, SpaceSize(diagram))
		assert.Positive(t, SpaceSize(diagram))
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"chargeStrength", -9000, -5000},
		{"chargeStrength", 12, 0},
		{"chargeStrength", -300, -300},
		{"linkDistance", 1, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp(tt.name, tt.in, DiagramNetwork))
	}
}

func TestRangesReturnsCopy(t *testing.T) {
	ranges := Ranges(DiagramNetwork)
	ranges["chargeStrength"] = Range{Kind: Numeric, Min: 0, Max: 1}
	fresh, _ := Lookup("chargeStrength", DiagramNetwork)
	assert.Equal(t, -5000.0, fresh.Min)
}

func TestValueJSONRoundTrip(t *testing.T) {
	set := Set{
		"linkDistance":  Num(120),
		"rankDir":       Str("LR"),
		"compactLayout": Flag(true),
	}
	data, err := json.Marshal(set)
	require.NoError(t, err)

	var got Set
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, set.Equal(got))
}
