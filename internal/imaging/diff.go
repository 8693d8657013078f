package imaging

import (
	"image"
	"image/color"
)

// significantDiff is the per-pixel grayscale delta above which a pixel counts
// as materially different in the diff statistics.
const significantDiff = 25

// hotspotGrid is the number of cells per axis used to aggregate hotspots.
const hotspotGrid = 8

// Hotspot is a rectangular region with a concentration of differing pixels.
type Hotspot struct {
	Rect     image.Rectangle `json:"rect"`
	MeanDiff float64         `json:"meanDiff"`
}

// DiffResult holds the per-pixel comparison output. Heatmap is a grayscale
// rendering of the absolute difference; Overlay is the reference image with
// significantly different pixels tinted red.
type DiffResult struct {
	Heatmap *image.Gray  `json:"-"`
	Overlay *image.NRGBA `json:"-"`

	MeanDiff         float64   `json:"meanDiff"`
	MaxDiff          float64   `json:"maxDiff"`
	PercentDifferent float64   `json:"percentDifferent"`
	Hotspots         []Hotspot `json:"hotspots"`
}

// DiffHeatmap computes the per-pixel absolute grayscale difference between
// two equally sized images and aggregates it into heatmap and overlay buffers
// plus summary statistics. Mismatched or empty images yield a
// *ComparisonError.
func DiffHeatmap(a, b image.Image) (*DiffResult, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return nil, comparisonErr("diff", ErrSizeMismatch)
	}
	if ab.Dx() == 0 || ab.Dy() == 0 {
		return nil, comparisonErr("diff", ErrEmptyImage)
	}

	w, h := ab.Dx(), ab.Dy()
	ga := grayPixels(a)
	gb := grayPixels(b)

	heatmap := image.NewGray(image.Rect(0, 0, w, h))
	overlay := image.NewNRGBA(image.Rect(0, 0, w, h))

	cellSums := make([]float64, hotspotGrid*hotspotGrid)
	cellCounts := make([]int, hotspotGrid*hotspotGrid)

	var sum, max float64
	differing := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := ga[y*w+x] - gb[y*w+x]
			if d < 0 {
				d = -d
			}
			sum += d
			if d > max {
				max = d
			}

			heatmap.SetGray(x, y, color.Gray{Y: uint8(d)})
			base := uint8(ga[y*w+x])
			if d > significantDiff {
				differing++
				overlay.SetNRGBA(x, y, color.NRGBA{R: 220, G: base / 3, B: base / 3, A: 255})
			} else {
				overlay.SetNRGBA(x, y, color.NRGBA{R: base, G: base, B: base, A: 255})
			}

			cell := (y*hotspotGrid/h)*hotspotGrid + x*hotspotGrid/w
			cellSums[cell] += d
			cellCounts[cell]++
		}
	}

	total := float64(w * h)
	result := &DiffResult{
		Heatmap:          heatmap,
		Overlay:          overlay,
		MeanDiff:         sum / total,
		MaxDiff:          max,
		PercentDifferent: float64(differing) / total * 100,
	}

	cellW, cellH := (w+hotspotGrid-1)/hotspotGrid, (h+hotspotGrid-1)/hotspotGrid
	for cy := 0; cy < hotspotGrid; cy++ {
		for cx := 0; cx < hotspotGrid; cx++ {
			idx := cy*hotspotGrid + cx
			if cellCounts[idx] == 0 {
				continue
			}
			mean := cellSums[idx] / float64(cellCounts[idx])
			if mean > significantDiff {
				result.Hotspots = append(result.Hotspots, Hotspot{
					Rect:     image.Rect(cx*cellW, cy*cellH, min(w, (cx+1)*cellW), min(h, (cy+1)*cellH)),
					MeanDiff: mean,
				})
			}
		}
	}
	return result, nil
}
