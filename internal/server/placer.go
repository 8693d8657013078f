package server

import (
	"context"
	"math"

	"github.com/docrobotics/layouttune/internal/params"
	"github.com/docrobotics/layouttune/internal/refine"
	"github.com/docrobotics/layouttune/internal/scoring"
)

// nodeSpec and edgeSpec describe the diagram a refinement request wants laid
// out. Sizes default when omitted.
type nodeSpec struct {
	ID     string  `json:"id"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

type edgeSpec struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
}

const (
	defaultNodeWidth  = 120.0
	defaultNodeHeight = 60.0
)

// newPlacer builds the built-in layout applicator: a deterministic placer
// that positions the request's nodes from the candidate parameters. It stands
// in for an external rendering engine, so identical parameters always yield
// identical geometry and the readability metrics respond to spacing changes.
func newPlacer(nodes []nodeSpec, edges []edgeSpec, layout params.LayoutType) refine.LayoutApplicator {
	return refine.ApplicatorFunc(func(ctx context.Context, set params.Set) (*refine.Layout, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		placed := make([]scoring.Node, len(nodes))
		for i, n := range nodes {
			placed[i] = scoring.Node{ID: n.ID, Width: n.Width, Height: n.Height}
			if placed[i].Width <= 0 {
				placed[i].Width = defaultNodeWidth
			}
			if placed[i].Height <= 0 {
				placed[i].Height = defaultNodeHeight
			}
		}

		switch layout {
		case params.LayoutHierarchical:
			placeLayered(placed, edges, set)
		default:
			placeRadial(placed, set)
		}

		scored := make([]scoring.Edge, len(edges))
		for i, e := range edges {
			scored[i] = scoring.Edge{ID: e.ID, Source: e.Source, Target: e.Target}
		}
		return &refine.Layout{Nodes: placed, Edges: scored}, nil
	})
}

// placeLayered assigns longest-path ranks from the roots and lays each rank
// out left to right. Cycles are tolerated: rank relaxation is bounded by the
// node count.
func placeLayered(nodes []scoring.Node, edges []edgeSpec, set params.Set) {
	rankSep := numParam(set, params.LayoutHierarchical, "rankSep")
	nodeSep := numParam(set, params.LayoutHierarchical, "nodeSep")

	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}

	rank := make([]int, len(nodes))
	for pass := 0; pass < len(nodes); pass++ {
		changed := false
		for _, e := range edges {
			si, ok1 := index[e.Source]
			ti, ok2 := index[e.Target]
			if !ok1 || !ok2 || si == ti {
				continue
			}
			if rank[si]+1 > rank[ti] {
				rank[ti] = rank[si] + 1
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	cursorX := make(map[int]float64)
	for i := range nodes {
		r := rank[i]
		nodes[i].X = cursorX[r]
		nodes[i].Y = float64(r) * (rankSep + nodes[i].Height)
		cursorX[r] += nodes[i].Width + nodeSep
	}
}

// placeRadial spreads node centers around a circle whose circumference keeps
// neighbors roughly linkDistance plus collision margin apart.
func placeRadial(nodes []scoring.Node, set params.Set) {
	linkDistance := numParam(set, params.LayoutForce, "linkDistance")
	collideRadius := numParam(set, params.LayoutForce, "collideRadius")

	n := len(nodes)
	if n == 1 {
		return
	}
	spacing := linkDistance + 2*collideRadius
	radius := math.Max(linkDistance, spacing*float64(n)/(2*math.Pi))

	for i := range nodes {
		angle := 2 * math.Pi * float64(i) / float64(n)
		cx := radius * math.Cos(angle)
		cy := radius * math.Sin(angle)
		nodes[i].X = cx - nodes[i].Width/2
		nodes[i].Y = cy - nodes[i].Height/2
	}
}

func numParam(set params.Set, layout params.LayoutType, name string) float64 {
	if v, ok := set[name]; ok && v.Kind == params.Numeric {
		return v.Num
	}
	if r, ok := params.LookupFamily(name, layout); ok {
		return r.Default
	}
	return 0
}
