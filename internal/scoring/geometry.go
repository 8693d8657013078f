// Package scoring computes layout-quality scores. Readability metrics are
// derived purely from node/edge geometry; the combined score additionally
// blends in visual similarity against a reference image (see the imaging
// package).
package scoring

import "math"

// Node is a positioned, sized node as produced by the layout applicator.
// X and Y are the top-left corner of the node's bounding box.
type Node struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Edge connects two nodes by ID.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// CenterX returns the horizontal center of the node.
func (n Node) CenterX() float64 { return n.X + n.Width/2 }

// CenterY returns the vertical center of the node.
func (n Node) CenterY() float64 { return n.Y + n.Height/2 }

type point struct{ x, y float64 }

// segmentsIntersect reports whether the open segments p1-p2 and p3-p4 cross.
// Segments that merely share an endpoint do not count as crossing.
func segmentsIntersect(p1, p2, p3, p4 point) bool {
	if p1 == p3 || p1 == p4 || p2 == p3 || p2 == p4 {
		return false
	}
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// cross returns the z-component of (b-a) x (c-a).
func cross(a, b, c point) float64 {
	return (b.x-a.x)*(c.y-a.y) - (b.y-a.y)*(c.x-a.x)
}

// boundingBox returns the min/max extents over all nodes. Zero-area boxes are
// possible for degenerate layouts; callers must guard against that.
func boundingBox(nodes []Node) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		minX = math.Min(minX, n.X)
		minY = math.Min(minY, n.Y)
		maxX = math.Max(maxX, n.X+n.Width)
		maxY = math.Max(maxY, n.Y+n.Height)
	}
	return
}

// overlapArea returns the intersection area of two node bounding boxes.
func overlapArea(a, b Node) float64 {
	w := math.Min(a.X+a.Width, b.X+b.Width) - math.Max(a.X, b.X)
	h := math.Min(a.Y+a.Height, b.Y+b.Height) - math.Max(a.Y, b.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}
