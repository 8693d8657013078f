package scoring

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultAspectRatio is the target width:height ratio for AspectRatioScore.
const DefaultAspectRatio = 16.0 / 9.0

// Breakdown reports the individual readability metrics alongside the fused
// score so callers can show which aspect dragged a layout down.
type Breakdown struct {
	Crossings          int     `json:"crossings"`
	Occlusion          float64 `json:"occlusion"`
	AspectRatio        float64 `json:"aspectRatio"`
	EdgeLengthVariance float64 `json:"edgeLengthVariance"`
	Density            float64 `json:"density"`
	Readability        float64 `json:"readability"`
}

// EdgeCrossings counts pairwise intersections between edge segments drawn
// center to center. Edges sharing an endpoint never count. O(E^2) over edge
// pairs, which is fine at diagram scale.
func EdgeCrossings(nodes []Node, edges []Edge) int {
	centers := centerIndex(nodes)
	count := 0
	for i := 0; i < len(edges); i++ {
		a1, ok1 := centers[edges[i].Source]
		a2, ok2 := centers[edges[i].Target]
		if !ok1 || !ok2 {
			continue
		}
		for j := i + 1; j < len(edges); j++ {
			if sharesEndpoint(edges[i], edges[j]) {
				continue
			}
			b1, ok3 := centers[edges[j].Source]
			b2, ok4 := centers[edges[j].Target]
			if !ok3 || !ok4 {
				continue
			}
			if segmentsIntersect(a1, a2, b1, b2) {
				count++
			}
		}
	}
	return count
}

// NodeOcclusion returns the summed pairwise bounding-box overlap area
// normalized by the total node area, so 0 means no overlap and values near 1
// mean the layout is a pile.
func NodeOcclusion(nodes []Node) float64 {
	total := 0.0
	for _, n := range nodes {
		total += n.Width * n.Height
	}
	if total == 0 {
		return 0
	}
	overlap := 0.0
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			overlap += overlapArea(nodes[i], nodes[j])
		}
	}
	return math.Min(1, overlap/total)
}

// AspectRatioScore scores how close the layout bounding box is to the target
// width:height ratio, 1 at the target falling toward 0 as the box stretches.
func AspectRatioScore(nodes []Node, target float64) float64 {
	if len(nodes) == 0 {
		return 0
	}
	minX, minY, maxX, maxY := boundingBox(nodes)
	w, h := maxX-minX, maxY-minY
	if w <= 0 || h <= 0 {
		return 0
	}
	ratio := w / h
	if ratio > target {
		return target / ratio
	}
	return ratio / target
}

// EdgeLengthVariance returns the coefficient of variation of edge lengths.
// 0 means perfectly uniform edges; larger values mean uneven spacing.
func EdgeLengthVariance(nodes []Node, edges []Edge) float64 {
	centers := centerIndex(nodes)
	lengths := make([]float64, 0, len(edges))
	for _, e := range edges {
		a, ok1 := centers[e.Source]
		b, ok2 := centers[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		lengths = append(lengths, math.Hypot(b.x-a.x, b.y-a.y))
	}
	if len(lengths) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(lengths, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}

// Density returns nodes per unit bounding-box area, scaled by 1e4 so typical
// pixel-space layouts land in a readable magnitude.
func Density(nodes []Node) float64 {
	if len(nodes) == 0 {
		return 0
	}
	minX, minY, maxX, maxY := boundingBox(nodes)
	area := (maxX - minX) * (maxY - minY)
	if area <= 0 {
		return 0
	}
	return float64(len(nodes)) / area * 1e4
}

// Readability fuses the geometry metrics into a single [0,1] score.
// Crossings and occlusion penalize, aspect ratio and edge-length consistency
// reward, and extreme density (packed or sparse) costs a little.
func Readability(nodes []Node, edges []Edge) Breakdown {
	b := Breakdown{
		Crossings:          EdgeCrossings(nodes, edges),
		Occlusion:          NodeOcclusion(nodes),
		AspectRatio:        AspectRatioScore(nodes, DefaultAspectRatio),
		EdgeLengthVariance: EdgeLengthVariance(nodes, edges),
		Density:            Density(nodes),
	}
	if len(nodes) == 0 {
		return b
	}

	// Crossing penalty saturates relative to edge count so dense graphs are
	// not scored on an impossible standard.
	crossingPenalty := 0.0
	if len(edges) > 0 {
		crossingPenalty = math.Min(1, float64(b.Crossings)/float64(len(edges)))
	}
	consistency := 1.0 / (1.0 + b.EdgeLengthVariance)
	densityScore := 1.0 - math.Min(1, math.Abs(b.Density-1.0))

	score := 0.30*(1-crossingPenalty) +
		0.25*(1-b.Occlusion) +
		0.20*b.AspectRatio +
		0.15*consistency +
		0.10*densityScore
	b.Readability = clamp01(score)
	return b
}

func centerIndex(nodes []Node) map[string]point {
	centers := make(map[string]point, len(nodes))
	for _, n := range nodes {
		centers[n.ID] = point{n.CenterX(), n.CenterY()}
	}
	return centers
}

func sharesEndpoint(a, b Edge) bool {
	return a.Source == b.Source || a.Source == b.Target ||
		a.Target == b.Source || a.Target == b.Target
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
